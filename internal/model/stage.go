package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/cc-sentinel/sentinel/internal/extraction"
	"github.com/cc-sentinel/sentinel/internal/pipeline"
	"github.com/cc-sentinel/sentinel/internal/slog"
)

// TrainingSource reads the persisted, type-filtered training corpus a
// plugin retrains from. Satisfied structurally by *persistence.Store.
type TrainingSource interface {
	ReadTrainingRows(typeKey string) ([]extraction.TrainingRow, error)
}

// Stage is the terminal pipeline stage: it asks every configured
// plugin for a verdict and alerts on the first attack verdict. There
// is no DTO successor past model — a clean request simply returns nil
// and acquisition forwards it upstream, per spec §4.6/§7.
type Stage struct {
	pipeline.Bus

	Plugins []Plugin

	// Training gates whether a retrain is attempted before prediction.
	Training bool
	Source   TrainingSource
}

// NewStage constructs a model stage. At least one plugin is required,
// per spec §6's "at least one model plugin" startup contract.
func NewStage(plugins []Plugin) (*Stage, error) {
	if len(plugins) == 0 {
		return nil, errors.New("model: at least one plugin must be configured")
	}
	return &Stage{Plugins: plugins}, nil
}

// Run implements pipeline.Stage.
func (s *Stage) Run(ctx context.Context, d pipeline.DTO) error {
	in, ok := d.(pipeline.ExtractionModel)
	if !ok {
		return &pipeline.ContractError{Stage: "model", Got: d}
	}

	if s.Training && s.Source != nil {
		rows, err := s.Source.ReadTrainingRows(in.Type.String())
		if err != nil {
			slog.Warnf("model: reading training rows: %v", err)
		} else {
			converted := make([]TrainingRow, len(rows))
			for i, r := range rows {
				converted[i] = TrainingRow{Features: r.Features, Label: r.Label}
			}
			for _, p := range s.Plugins {
				if err := p.Train(in.Type, converted); err != nil {
					slog.Warnf("model: plugin %s training error: %v", p.Name(), err)
				}
			}
		}
	}

	for _, p := range s.Plugins {
		label, score := p.Predict(in.Type, in.Features)
		if label == 1 {
			s.Notify(s, pipeline.Alert{
				Message: fmt.Sprintf("Attack detected with accuracy(%v)", score),
				Source:  fmt.Sprintf("Model Stage Plugin %s", p.Name()),
			})
			return pipeline.ErrDropped
		}
	}
	return nil
}
