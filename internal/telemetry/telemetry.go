// Package telemetry instruments the pipeline: Prometheus counters and
// histograms backing the /metrics endpoint, plus a periodic
// line-protocol encoder for off-box ingestion of per-stage counters.
// See SPEC_FULL.md's telemetry domain-stack entries.
package telemetry

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cc-sentinel/sentinel/internal/pipeline"
)

// Metrics is the process-wide set of Prometheus collectors. Wrap each
// stage in Observe to count and time its Run calls and to attach a
// StageObserver that counts its alerts.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	alerts   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	queue    *prometheus.GaugeVec
}

// NewMetrics creates and registers the collector set against a fresh
// registry (kept separate from the global default registry so tests
// can construct multiple independent instances).
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "stage_requests_total",
			Help:      "Requests processed by each pipeline stage.",
		}, []string{"stage"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "stage_alerts_total",
			Help:      "Alerts raised by each pipeline stage, by source.",
		}, []string{"stage", "source"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "stage_duration_seconds",
			Help:      "Time spent inside each pipeline stage's Run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		queue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "persistence_queue_depth",
			Help:      "Pending write-queue items in the persistence layer.",
		}, []string{"queue"}),
	}

	m.registry.MustRegister(m.requests, m.alerts, m.latency, m.queue)
	return m
}

// Registry exposes the collector registry for promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetQueueDepth records the current depth of a named write queue.
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	m.queue.WithLabelValues(queue).Set(float64(depth))
}

// QueueDepthSource reports how many writes are currently buffered ahead
// of a queue's drain goroutine. *persistence.Store satisfies this.
type QueueDepthSource interface {
	QueueDepth() int
}

// DefaultQueueDepthInterval is how often StartQueueDepthReporter samples
// the source.
const DefaultQueueDepthInterval = 5 * time.Second

// StartQueueDepthReporter schedules a periodic sample of source into the
// persistence_queue_depth gauge, using the same gocron background-job
// shape as the filter blocklist refresh and the persistence maintenance
// sweep. The caller shuts the returned scheduler down on exit.
func StartQueueDepthReporter(m *Metrics, queue string, source QueueDepthSource, interval time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		interval = DefaultQueueDepthInterval
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { m.SetQueueDepth(queue, source.QueueDepth()) }),
	); err != nil {
		return nil, err
	}
	sched.Start()
	return sched, nil
}

// StageObserver implements pipeline.Observer, counting alerts by stage
// and source. Observe attaches one per wrapped stage so the stage name
// is recorded correctly.
type StageObserver struct {
	metrics *Metrics
	stage   string
}

// Observe wraps a stage so every Run call is counted and timed, and
// attaches an alert-counting observer. Use it once per constructed
// stage at wiring time in cmd/sentinel.
func Observe(m *Metrics, stageName string, stage pipeline.Stage) pipeline.Stage {
	stage.Attach(&StageObserver{metrics: m, stage: stageName})
	return &timedStage{metrics: m, stage: stage, name: stageName}
}

func (o *StageObserver) Update(_ pipeline.Stage, alert pipeline.Alert) {
	o.metrics.alerts.WithLabelValues(o.stage, alert.Source).Inc()
}

type timedStage struct {
	metrics *Metrics
	stage   pipeline.Stage
	name    string
}

func (t *timedStage) Run(ctx context.Context, d pipeline.DTO) error {
	start := time.Now()
	t.metrics.requests.WithLabelValues(t.name).Inc()
	err := t.stage.Run(ctx, d)
	t.metrics.latency.WithLabelValues(t.name).Observe(time.Since(start).Seconds())
	return err
}

func (t *timedStage) Attach(o pipeline.Observer) { t.stage.Attach(o) }
func (t *timedStage) Detach(o pipeline.Observer) { t.stage.Detach(o) }
