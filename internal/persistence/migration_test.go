package persistence

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAppliesMigrations(t *testing.T) {
	path := t.TempDir() + "/test.db"
	defer os.Remove(path)

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"objects", "training_rows", "ngram_entries", "namespaces"} {
		var name string
		err := s.db.Get(&name, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table)
		require.NoError(t, err, "expected table %s to exist after migration", table)
		require.Equal(t, table, name)
	}

	var updatedAt int64
	err = s.db.Get(&updatedAt, "SELECT updated_at FROM namespaces WHERE key = ?", "schema")
	require.NoError(t, err, "expected migration bookkeeping row for key \"schema\"")
	require.Greater(t, updatedAt, int64(0))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := t.TempDir() + "/test.db"
	defer os.Remove(path)

	s1, err := Open(path)
	require.NoError(t, err)
	s1.Close()

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
}
