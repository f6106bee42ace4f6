package alerting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cc-sentinel/sentinel/internal/pipeline"
)

func TestLogObserverDisabledSkipsFile(t *testing.T) {
	dir := t.TempDir()
	o, err := NewLogObserver(dir, false)
	require.NoError(t, err)

	o.Update(nil, pipeline.Alert{Message: "attack detected", Source: "test"})

	_, err = os.Stat(filepath.Join(dir, "log.log"))
	assert.True(t, os.IsNotExist(err), "log file must not be created when logging is disabled")
	require.NoError(t, o.Close())
}

func TestLogObserverEnabledAppendsLine(t *testing.T) {
	dir := t.TempDir()
	o, err := NewLogObserver(dir, true)
	require.NoError(t, err)

	o.Update(nil, pipeline.Alert{Message: "attack detected", Source: "test plugin"})
	require.NoError(t, o.Close())

	contents, err := os.ReadFile(filepath.Join(dir, "log.log"))
	require.NoError(t, err)
	assert.Contains(t, string(contents), "ALERT: attack detected. Source: test plugin")
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func TestNatsObserverPublishesAlert(t *testing.T) {
	pub := &fakePublisher{}
	o := &NatsObserver{Conn: pub, Subject: "sentinel.alerts"}

	o.Update(nil, pipeline.Alert{Message: "attack detected", Source: "model stage"})

	assert.Equal(t, "sentinel.alerts", pub.subject)
	assert.Contains(t, string(pub.data), "attack detected")
	assert.Contains(t, string(pub.data), "model stage")
}

func TestNatsObserverSwallowsPublishError(t *testing.T) {
	pub := &fakePublisher{err: assert.AnError}
	o := &NatsObserver{Conn: pub, Subject: "sentinel.alerts"}

	assert.NotPanics(t, func() {
		o.Update(nil, pipeline.Alert{Message: "attack detected", Source: "model stage"})
	})
}
