package persistence

import (
	"context"
	"time"

	"github.com/cc-sentinel/sentinel/internal/slog"
)

type queryTimingKey struct{}

// hooks satisfies sqlhooks.Hooks; it logs every statement the queue
// executes and the time it took, at debug level.
type hooks struct{}

func (h *hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	slog.Debugf("persistence: query %s %q", query, args)
	return context.WithValue(ctx, queryTimingKey{}, time.Now()), nil
}

func (h *hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(queryTimingKey{}).(time.Time); ok {
		slog.Debugf("persistence: took %s", time.Since(begin))
	}
	return ctx, nil
}
