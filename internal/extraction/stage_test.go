package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/cc-sentinel/sentinel/internal/message"
	"github.com/cc-sentinel/sentinel/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSuccessor struct {
	got pipeline.DTO
}

func (c *captureSuccessor) Run(_ context.Context, d pipeline.DTO) error {
	c.got = d
	return nil
}
func (c *captureSuccessor) Attach(pipeline.Observer) {}
func (c *captureSuccessor) Detach(pipeline.Observer) {}

func TestEmptyBodyOmitsBodyFeatures(t *testing.T) {
	plugin := NewNGramPlugin(NewManager())
	successor := &captureSuccessor{}
	stage, err := NewStage([]Plugin{plugin}, successor)
	require.NoError(t, err)

	msg := message.New("1.2.3.4", "GET", "/x", "", "HTTP/1.1", nil, nil)
	require.NoError(t, stage.Run(context.Background(), pipeline.TypingExtraction{
		Message: msg,
		Type:    message.TypeOf(msg),
	}))

	out, ok := successor.got.(pipeline.ExtractionModel)
	require.True(t, ok)
	for k := range out.Features {
		assert.NotContains(t, k, "body_")
	}
}

func TestNoPluginsFailsStartup(t *testing.T) {
	_, err := NewStage(nil, nil)
	assert.Error(t, err)
}

func TestContractErrorOnWrongDTO(t *testing.T) {
	plugin := NewNGramPlugin(NewManager())
	stage, err := NewStage([]Plugin{plugin}, nil)
	require.NoError(t, err)

	err = stage.Run(context.Background(), pipeline.AcquisitionFilter{})
	var ce *pipeline.ContractError
	assert.ErrorAs(t, err, &ce)
}

type fakeSink struct {
	rows []TrainingRow
}

func (f *fakeSink) EnqueueNGram(message.Type, Side, int, time.Time, Counter) {}
func (f *fakeSink) EnqueueTrainingRow(row TrainingRow)                       { f.rows = append(f.rows, row) }

func TestTrainingModePersistsRow(t *testing.T) {
	plugin := NewNGramPlugin(NewManager())
	sink := &fakeSink{}
	stage, err := NewStage([]Plugin{plugin}, nil)
	require.NoError(t, err)
	stage.Training = true
	stage.Sink = sink

	msg := message.New("1.2.3.4", "POST", "/x", "", "HTTP/1.1", nil, []byte("abc"))
	require.NoError(t, stage.Run(context.Background(), pipeline.TypingExtraction{
		Message: msg,
		Type:    message.TypeOf(msg),
	}))

	require.Len(t, sink.rows, 1)
	assert.Equal(t, 1, sink.rows[0].Label)
}
