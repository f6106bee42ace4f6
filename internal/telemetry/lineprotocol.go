package telemetry

import (
	"context"
	"io"
	"time"

	influx "github.com/influxdata/line-protocol/v2/lineprotocol"

	"github.com/cc-sentinel/sentinel/internal/slog"
)

// Snapshot is one point-in-time count, keyed by stage and request type,
// emitted by the periodic line-protocol exporter.
type Snapshot struct {
	Stage      string
	TypeKey    string
	Requests   uint64
	Alerts     uint64
	ObservedAt time.Time
}

// SnapshotSource supplies the counters the exporter encodes each tick.
// Implementations are expected to reset per-tick counters internally;
// the exporter only reads.
type SnapshotSource interface {
	Snapshots() []Snapshot
}

// Exporter periodically encodes SnapshotSource output as InfluxDB line
// protocol and writes it to w — typically a UDP or file sink configured
// for off-box ingestion by a metrics collector that isn't Prometheus.
type Exporter struct {
	source   SnapshotSource
	w        io.Writer
	interval time.Duration
}

// NewExporter builds an exporter. A zero interval defaults to one
// minute.
func NewExporter(source SnapshotSource, w io.Writer, interval time.Duration) *Exporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Exporter{source: source, w: w, interval: interval}
}

// Run ticks until ctx is cancelled, encoding and writing one batch of
// points per tick.
func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Exporter) tick() {
	snaps := e.source.Snapshots()
	if len(snaps) == 0 {
		return
	}

	var enc influx.Encoder
	enc.SetPrecision(influx.Nanosecond)
	for _, s := range snaps {
		enc.StartLine("sentinel_pipeline")
		enc.AddTag("stage", s.Stage)
		enc.AddTag("type", s.TypeKey)
		enc.AddField("requests", influx.MustNewValue(int64(s.Requests)))
		enc.AddField("alerts", influx.MustNewValue(int64(s.Alerts)))
		enc.EndLine(s.ObservedAt)
	}
	if err := enc.Err(); err != nil {
		slog.Warnf("telemetry: encoding line-protocol batch: %v", err)
		return
	}
	if _, err := e.w.Write(enc.Bytes()); err != nil {
		slog.Warnf("telemetry: writing line-protocol batch: %v", err)
	}
}
