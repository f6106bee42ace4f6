package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cc-sentinel/sentinel/internal/pipeline"
)

type passStage struct{ ran int }

func (p *passStage) Run(context.Context, pipeline.DTO) error { p.ran++; return nil }
func (p *passStage) Attach(pipeline.Observer)                {}
func (p *passStage) Detach(pipeline.Observer)                {}

func TestObserveCountsRequests(t *testing.T) {
	m := NewMetrics()
	inner := &passStage{}
	wrapped := Observe(m, "filter", inner)

	err := wrapped.Run(context.Background(), pipeline.AcquisitionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.ran)

	count := testutilCounterValue(t, m)
	assert.GreaterOrEqual(t, count, 1.0)
}

func testutilCounterValue(t *testing.T, m *Metrics) float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != "sentinel_stage_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

type stubSource struct{ snaps []Snapshot }

func (s stubSource) Snapshots() []Snapshot { return s.snaps }

type bufWriter struct{ n int }

func (b *bufWriter) Write(p []byte) (int, error) { b.n += len(p); return len(p), nil }

func TestExporterTickWritesNonEmptyBatch(t *testing.T) {
	buf := &bufWriter{}
	exp := NewExporter(stubSource{snaps: []Snapshot{{Stage: "model", TypeKey: "GET|/x|false|false", Requests: 3, Alerts: 1}}}, buf, 0)
	exp.tick()
	assert.Greater(t, buf.n, 0)
}

type stubQueueDepth struct{ depth int }

func (s stubQueueDepth) QueueDepth() int { return s.depth }

func TestStartQueueDepthReporterSamplesGauge(t *testing.T) {
	m := NewMetrics()
	sched, err := StartQueueDepthReporter(m, "write", stubQueueDepth{depth: 7}, 10*time.Millisecond)
	require.NoError(t, err)
	defer sched.Shutdown()

	require.Eventually(t, func() bool {
		mfs, err := m.Registry().Gather()
		require.NoError(t, err)
		for _, mf := range mfs {
			if mf.GetName() != "sentinel_persistence_queue_depth" {
				continue
			}
			for _, metric := range mf.GetMetric() {
				if metric.GetGauge().GetValue() == 7 {
					return true
				}
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}
