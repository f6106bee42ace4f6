package extraction

import (
	"context"
	"time"

	"github.com/cc-sentinel/sentinel/internal/message"
)

// Plugin is the extraction plug-in contract of spec §4.5.3. Multiple
// plugins may coexist; the stage unions their feature maps by key, later
// plugins overriding earlier ones on conflict.
type Plugin interface {
	Extract(ctx context.Context, msg *message.HTTP, typ message.Type) (map[string]any, error)
}

// TrainingRow is the labelled feature row persisted in training mode,
// per spec §3.
type TrainingRow struct {
	Features map[string]any
	Message  *message.HTTP
	Type     message.Type
	Label    int
}

// TrainingSink is implemented by the persistence layer. It is only
// consulted when the pipeline is running in training mode.
type TrainingSink interface {
	EnqueueNGram(t message.Type, side Side, n int, ts time.Time, c Counter)
	EnqueueTrainingRow(row TrainingRow)
}
