package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cc-sentinel/sentinel/internal/extraction"
	"github.com/cc-sentinel/sentinel/internal/message"
	"github.com/cc-sentinel/sentinel/internal/pipeline"
)

type recordingObserver struct {
	alerts []pipeline.Alert
}

func (r *recordingObserver) Update(_ pipeline.Stage, alert pipeline.Alert) {
	r.alerts = append(r.alerts, alert)
}

func TestNoPluginsFailsStartup(t *testing.T) {
	_, err := NewStage(nil)
	assert.Error(t, err)
}

func TestContractErrorOnWrongDTO(t *testing.T) {
	stage, err := NewStage([]Plugin{NewBaselinePlugin(nil)})
	require.NoError(t, err)

	err = stage.Run(context.Background(), pipeline.TypingExtraction{})
	var ce *pipeline.ContractError
	assert.ErrorAs(t, err, &ce)
}

func TestUntrainedModelAlertsAndDrops(t *testing.T) {
	stage, err := NewStage([]Plugin{NewBaselinePlugin(nil)})
	require.NoError(t, err)

	obs := &recordingObserver{}
	stage.Attach(obs)

	in := pipeline.ExtractionModel{
		Features: map[string]any{"length": 10.0},
		Type:     message.Type{Method: "GET", Path: "/x"},
	}
	err = stage.Run(context.Background(), in)

	require.ErrorIs(t, err, pipeline.ErrDropped)
	require.Len(t, obs.alerts, 1)
	assert.Contains(t, obs.alerts[0].Message, "Attack detected with accuracy")
	assert.Equal(t, "Model Stage Plugin baseline", obs.alerts[0].Source)
}

type fakeSource struct {
	rows []extraction.TrainingRow
}

func (f *fakeSource) ReadTrainingRows(string) ([]extraction.TrainingRow, error) {
	return f.rows, nil
}

func TestTrainingModeRetrainsBeforePredicting(t *testing.T) {
	typ := message.Type{Method: "POST", Path: "/login", HasBody: true}

	var rows []extraction.TrainingRow
	for i := 0; i < 10; i++ {
		rows = append(rows, extraction.TrainingRow{Features: map[string]any{"length": 10.0 + float64(i)}, Type: typ, Label: 0})
	}
	for i := 0; i < 10; i++ {
		rows = append(rows, extraction.TrainingRow{Features: map[string]any{"length": 1000.0 + float64(i)}, Type: typ, Label: 1})
	}

	stage, err := NewStage([]Plugin{NewBaselinePlugin(nil)})
	require.NoError(t, err)
	stage.Training = true
	stage.Source = &fakeSource{rows: rows}

	err = stage.Run(context.Background(), pipeline.ExtractionModel{
		Features: map[string]any{"length": 12.0},
		Type:     typ,
	})
	assert.NoError(t, err, "a request near the learned normal centroid should pass once trained")
}
