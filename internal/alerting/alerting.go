// Package alerting hosts the built-in pipeline.Observer implementations:
// the default stdout/file logger and an optional NATS publisher for
// downstream SOC tooling.
package alerting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cc-sentinel/sentinel/internal/pipeline"
	"github.com/cc-sentinel/sentinel/internal/slog"
)

// LogObserver writes "ALERT: <message>. Source: <source>" to stdout and,
// when logging is enabled, appends an ISO-timestamped line to log.log in
// the directory given to NewLogObserver. It is safe for concurrent use: observers may be called
// from any request-handler goroutine.
type LogObserver struct {
	mu      sync.Mutex
	file    *os.File
	enabled bool
}

// NewLogObserver opens log.log inside dir when enabled is true. The
// directory is created if missing.
func NewLogObserver(dir string, enabled bool) (*LogObserver, error) {
	o := &LogObserver{enabled: enabled}
	if !enabled {
		return o, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("alerting: create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "log.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("alerting: open log file: %w", err)
	}
	o.file = f
	return o, nil
}

// Update implements pipeline.Observer.
func (o *LogObserver) Update(source pipeline.Stage, alert pipeline.Alert) {
	line := fmt.Sprintf("ALERT: %s. Source: %s", alert.Message, alert.Source)
	fmt.Fprintln(os.Stdout, line)

	if !o.enabled {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.file, "%s %s\n", time.Now().UTC().Format(time.RFC3339), line)
}

// Close releases the underlying log file, if any.
func (o *LogObserver) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}

// Publisher is the subset of *nats.Conn used by NatsObserver, narrowed so
// tests can substitute a fake.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NatsObserver republishes alerts onto a NATS subject for downstream
// consumers (SIEM ingestion, paging). Optional: wired only when a NATS
// address is configured.
type NatsObserver struct {
	Conn    Publisher
	Subject string
}

// Update implements pipeline.Observer. Publish errors are logged and
// swallowed: alerting must never block or fail the request path.
func (o *NatsObserver) Update(_ pipeline.Stage, alert pipeline.Alert) {
	payload := fmt.Sprintf(`{"message":%q,"source":%q,"time":%q}`,
		alert.Message, alert.Source, time.Now().UTC().Format(time.RFC3339))
	if err := o.Conn.Publish(o.Subject, []byte(payload)); err != nil {
		slog.Warnf("alerting: nats publish failed: %v", err)
	}
}
