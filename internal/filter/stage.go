package filter

import (
	"context"

	"github.com/cc-sentinel/sentinel/internal/message"
	"github.com/cc-sentinel/sentinel/internal/pipeline"
	"github.com/cc-sentinel/sentinel/internal/slog"
)

// Stage runs the registered plug-ins in order against each request.
// The first rejecting plug-in short-circuits the pipeline with an
// alert; a plug-in error is logged and treated as "no opinion", per
// spec §4.3.
type Stage struct {
	pipeline.Bus

	Plugins   []Plugin
	Successor pipeline.Stage
}

// NewStage constructs a filter stage from an ordered plug-in list.
func NewStage(plugins []Plugin, successor pipeline.Stage) *Stage {
	return &Stage{Plugins: plugins, Successor: successor}
}

// Run implements pipeline.Stage.
func (s *Stage) Run(ctx context.Context, d pipeline.DTO) error {
	in, ok := d.(pipeline.AcquisitionFilter)
	if !ok {
		return &pipeline.ContractError{Stage: "filter", Got: d}
	}

	for _, p := range s.Plugins {
		reject, reason, source := runPlugin(p, in.Message)
		if reject {
			s.Notify(s, pipeline.Alert{Message: reason, Source: source})
			return pipeline.ErrDropped
		}
	}

	if s.Successor == nil {
		return nil
	}
	return s.Successor.Run(ctx, pipeline.FilterTyping{Message: in.Message})
}

// runPlugin insulates the stage from a plug-in panic, the Go analogue
// of the exception-as-"no-opinion" contract in spec §4.3.
func runPlugin(p Plugin, msg *message.HTTP) (reject bool, reason, source string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warnf("filter: plugin panic treated as no-opinion: %v", r)
			reject, reason, source = false, "", ""
		}
	}()
	return p.FilterRequest(msg)
}
