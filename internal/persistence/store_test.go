package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cc-sentinel/sentinel/internal/extraction"
	"github.com/cc-sentinel/sentinel/internal/message"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDefaultStrategyRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Write(StrategyDefault, ObjectWrite{
		Namespace: NamespaceLRModel,
		Key:       "GET|/x|false|false",
		Value:     map[string]any{"weights": []float64{0.1, 0.2}},
	}))

	require.Eventually(t, func() bool {
		_, ok, err := s.Read(NamespaceLRModel, "GET|/x|false|false")
		return err == nil && ok
	}, time.Second, 5*time.Millisecond)

	blob, ok, err := s.Read(NamespaceLRModel, "GET|/x|false|false")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(blob), "weights")
}

func TestDefaultStrategyOverwrites(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Write(StrategyDefault, ObjectWrite{Namespace: "ns", Key: "k", Value: 1}))
	require.Eventually(t, func() bool {
		blob, ok, _ := s.Read("ns", "k")
		return ok && string(blob) == "1"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Write(StrategyDefault, ObjectWrite{Namespace: "ns", Key: "k", Value: 2}))
	require.Eventually(t, func() bool {
		blob, ok, _ := s.Read("ns", "k")
		return ok && string(blob) == "2"
	}, time.Second, 5*time.Millisecond)
}

func TestReadMissingKeyIsNotFound(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Read("ns", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnqueueTrainingRowPersistsAndReads(t *testing.T) {
	s := openTestStore(t)

	msg := message.New("1.2.3.4", "POST", "/login", "", "HTTP/1.1", nil, []byte("a=b"))
	typ := message.TypeOf(msg)

	s.EnqueueTrainingRow(extraction.TrainingRow{
		Features: map[string]any{"length": 10.0},
		Message:  msg,
		Type:     typ,
		Label:    1,
	})

	require.Eventually(t, func() bool {
		rows, err := s.ReadTrainingRows(typ.String())
		return err == nil && len(rows) == 1
	}, time.Second, 5*time.Millisecond)

	rows, err := s.ReadTrainingRows(typ.String())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Label)
	assert.Equal(t, "/login", rows[0].Message.Path)
}

func TestEnqueueNGramPersistsInArrivalOrder(t *testing.T) {
	s := openTestStore(t)

	typ := message.Type{Method: "POST", Path: "/x", HasBody: true}
	now := time.Now()

	s.EnqueueNGram(typ, extraction.SideBody, 1, now, extraction.Counter{"a": 1})
	s.EnqueueNGram(typ, extraction.SideBody, 1, now.Add(time.Millisecond), extraction.Counter{"b": 2})

	require.Eventually(t, func() bool {
		pool, err := s.ReadNGramPool(NamespaceBodyNGrams, typ.String(), 1)
		return err == nil && len(pool) == 2
	}, time.Second, 5*time.Millisecond)

	pool, err := s.ReadNGramPool(NamespaceBodyNGrams, typ.String(), 1)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, extraction.Counter{"a": 1}, pool[0])
	assert.Equal(t, extraction.Counter{"b": 2}, pool[1])
}

func TestMaintenanceModePausesWrites(t *testing.T) {
	s := openTestStore(t)

	s.SetMaintenanceMode(true)
	require.NoError(t, s.Write(StrategyDefault, ObjectWrite{Namespace: "ns", Key: "paused", Value: 1}))

	time.Sleep(50 * time.Millisecond)
	_, ok, err := s.Read("ns", "paused")
	require.NoError(t, err)
	assert.False(t, ok, "write should not land while maintenance mode is on")

	s.SetMaintenanceMode(false)
	require.Eventually(t, func() bool {
		_, ok, _ := s.Read("ns", "paused")
		return ok
	}, time.Second, 5*time.Millisecond)
}
