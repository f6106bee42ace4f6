// Package extraction computes per-request features — basic metadata,
// character-class tallies, and the rolling n-gram "common vocabulary"
// score — and, in training mode, feeds a persistent n-gram pool and a
// labelled feature-row corpus. See spec §4.5.
package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/cc-sentinel/sentinel/internal/message"
	"github.com/cc-sentinel/sentinel/internal/pipeline"
	"github.com/cc-sentinel/sentinel/internal/slog"
)

// Stage hosts the extraction plugin chain and, in training mode,
// persists labelled rows for later model retraining.
type Stage struct {
	pipeline.Bus

	Plugins   []Plugin
	Successor pipeline.Stage

	Training bool
	Sink     TrainingSink

	// LabelFunc assigns the label of a persisted training row. Defaults
	// to always-1; tests inject 0 to build a labelled corpus, per
	// spec §4.5.2.
	LabelFunc func(*message.HTTP) int
}

// NewStage constructs an extraction stage. At least one plugin is
// required, per spec §4.5.3 — its absence is a startup error.
func NewStage(plugins []Plugin, successor pipeline.Stage) (*Stage, error) {
	if len(plugins) == 0 {
		return nil, errors.New("extraction: at least one plugin must be configured")
	}
	return &Stage{
		Plugins:   plugins,
		Successor: successor,
		LabelFunc: func(*message.HTTP) int { return 1 },
	}, nil
}

// Run implements pipeline.Stage.
func (s *Stage) Run(ctx context.Context, d pipeline.DTO) error {
	in, ok := d.(pipeline.TypingExtraction)
	if !ok {
		return &pipeline.ContractError{Stage: "extraction", Got: d}
	}

	features := map[string]any{}
	for _, p := range s.Plugins {
		f, err := p.Extract(ctx, in.Message, in.Type)
		if err != nil {
			// Plug-in runtime error: logged as a non-verdict event, pipeline
			// continues with the remaining plugins, per spec §7.
			slog.Warnf("extraction: plugin error: %v", err)
			s.Notify(s, pipeline.Alert{
				Message: fmt.Sprintf("extraction plugin error: %v", err),
				Source:  "Extraction Stage",
			})
			continue
		}
		for k, v := range f {
			features[k] = v
		}
	}

	if s.Training && s.Sink != nil {
		s.Sink.EnqueueTrainingRow(TrainingRow{
			Features: features,
			Message:  in.Message,
			Type:     in.Type,
			Label:    s.LabelFunc(in.Message),
		})
	}

	if s.Successor == nil {
		return nil
	}
	return s.Successor.Run(ctx, pipeline.ExtractionModel{
		Features: features,
		Message:  in.Message,
		Type:     in.Type,
	})
}
