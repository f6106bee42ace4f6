package extraction

import (
	"context"
	"time"

	"github.com/cc-sentinel/sentinel/internal/message"
)

// NGramPlugin is the built-in extraction plugin: it computes the basic
// metadata features of spec §4.5.1 plus, when a query or body is present,
// the rolling n-gram scores of §4.5.2. It is the plugin that satisfies
// the "at least one extraction plugin required" startup contract.
type NGramPlugin struct {
	Manager *Manager

	// Training gates whether fresh Counters are handed to Sink for
	// persistence; prediction still runs either way.
	Training bool
	Sink     TrainingSink

	// Now defaults to time.Now but is overridable for deterministic tests.
	Now func() time.Time
}

// NewNGramPlugin wires a manager with no persistence side effects
// (test/serving mode).
func NewNGramPlugin(m *Manager) *NGramPlugin {
	return &NGramPlugin{Manager: m, Now: time.Now}
}

// Extract implements Plugin.
func (p *NGramPlugin) Extract(_ context.Context, msg *message.HTTP, typ message.Type) (map[string]any, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	ts := now()

	features := map[string]any{}
	for k, v := range BasicFeatures(msg) {
		features[k] = v
	}

	if msg.HasQuery {
		for k, v := range QueryFeatures(msg) {
			features[k] = v
		}
		for _, n := range ngramSizes {
			features["query_"+ngramSuffix(n)] = p.Manager.Score(typ, SideQuery, n, msg.Query, ts, p.persistFn(typ, SideQuery, n, ts))
		}
	}

	if msg.HasBody {
		for k, v := range BodyFeatures(msg) {
			features[k] = v
		}
		for _, n := range ngramSizes {
			features["body_"+ngramSuffix(n)] = p.Manager.Score(typ, SideBody, n, string(msg.Body), ts, p.persistFn(typ, SideBody, n, ts))
		}
	}

	return features, nil
}

func (p *NGramPlugin) persistFn(typ message.Type, side Side, n int, ts time.Time) func(Counter) {
	if !p.Training || p.Sink == nil {
		return nil
	}
	return func(c Counter) {
		p.Sink.EnqueueNGram(typ, side, n, ts, c)
	}
}
