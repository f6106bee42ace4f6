package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cc-sentinel/sentinel/internal/message"
)

var testType = message.Type{Method: "POST", Path: "/login", HasBody: true}

func normalRow(x float64) TrainingRow {
	return TrainingRow{Features: map[string]any{"length": x}, Label: 0}
}

func anomalyRow(x float64) TrainingRow {
	return TrainingRow{Features: map[string]any{"length": x}, Label: 1}
}

// Scenario 6: below the training gate, the model stays untrained and
// denies by default.
func TestScenario6_UntrainedModelDeniesByDefault(t *testing.T) {
	p := NewBaselinePlugin(nil)

	rows := []TrainingRow{normalRow(10), normalRow(11), anomalyRow(500), anomalyRow(510)}
	require.NoError(t, p.Train(testType, rows))

	label, score := p.Predict(testType, map[string]any{"length": 10.0})
	assert.Equal(t, 1, label)
	assert.Equal(t, 1.0, score)
}

func TestTrainingBelowRowMinimumIsNoop(t *testing.T) {
	p := NewBaselinePlugin(nil)
	rows := []TrainingRow{normalRow(10), normalRow(11), normalRow(12), anomalyRow(500)}
	require.NoError(t, p.Train(testType, rows))

	label, score := p.Predict(testType, map[string]any{"length": 10.0})
	assert.Equal(t, 1, label)
	assert.Equal(t, 1.0, score)
}

func TestTrainingAboveGateProducesUsableModel(t *testing.T) {
	p := NewBaselinePlugin(nil)

	var rows []TrainingRow
	for i := 0; i < 10; i++ {
		rows = append(rows, normalRow(10+float64(i)))
	}
	for i := 0; i < 10; i++ {
		rows = append(rows, anomalyRow(1000+float64(i)))
	}

	require.NoError(t, p.Train(testType, rows))

	label, score := p.Predict(testType, map[string]any{"length": 10.0})
	assert.Equal(t, 0, label)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	label, _ = p.Predict(testType, map[string]any{"length": 5000.0})
	assert.Equal(t, 1, label)
}

func TestRetrainOnlyReplacesOnStrictImprovement(t *testing.T) {
	p := NewBaselinePlugin(nil)

	var goodRows []TrainingRow
	for i := 0; i < 10; i++ {
		goodRows = append(goodRows, normalRow(10+float64(i)))
	}
	for i := 0; i < 10; i++ {
		goodRows = append(goodRows, anomalyRow(1000+float64(i)))
	}
	require.NoError(t, p.Train(testType, goodRows))
	_, firstScore := p.Predict(testType, map[string]any{"length": 10.0})
	require.Equal(t, 0, mustLabel(p, map[string]any{"length": 10.0}))

	// A degenerate dataset where normal/anomaly overlap heavily should
	// not produce a strictly better held-out score, so the prior model
	// must survive untouched.
	var badRows []TrainingRow
	for i := 0; i < 10; i++ {
		badRows = append(badRows, normalRow(500+float64(i)))
	}
	for i := 0; i < 10; i++ {
		badRows = append(badRows, anomalyRow(500+float64(i)))
	}
	require.NoError(t, p.Train(testType, badRows))

	_, secondScore := p.Predict(testType, map[string]any{"length": 10.0})
	assert.Equal(t, firstScore, secondScore)
}

func mustLabel(p *BaselinePlugin, features map[string]any) int {
	label, _ := p.Predict(testType, features)
	return label
}
