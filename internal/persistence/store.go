// Package persistence is the single-writer object store behind training
// mode and the retrainable model registries. Every mutation is queued and
// applied by one goroutine, so sqlite's single-writer constraint is never
// contended; reads go straight to the handle and hand back a deep copy,
// per spec §4.7 and §5.
package persistence

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-co-op/gocron/v2"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/cc-sentinel/sentinel/internal/extraction"
	"github.com/cc-sentinel/sentinel/internal/message"
)

// Namespaces for the object-slot strategy, per spec §4.7.
const (
	NamespaceQueryNGrams  = "query_ngrams"
	NamespaceBodyNGrams   = "body_ngrams"
	NamespaceLRModel      = "lr_model_dict"
	NamespaceKMeansModel  = "kmeans_model_dict"
	trainingRowsNamespace = "data"
)

var registerOnce sync.Once

// Store is the concurrency-safe handle to the sqlite-backed object
// store. Construct with Open.
type Store struct {
	db     *sqlx.DB
	q      *queue
	strats map[string]Strategy

	maintenanceScheduler gocron.Scheduler
}

// Open opens (creating if absent) the sqlite database at path, applies
// pending schema migrations, and starts the write-queue goroutine.
// A single connection is enforced: sqlite does not profit from more,
// per the teacher's dbConnection.go.
func Open(path string) (*Store, error) {
	registerOnce.Do(func() {
		sql.Register("sqlite3_sentinel", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &hooks{}))
	})

	db, err := sqlx.Open("sqlite3_sentinel", fmt.Sprintf("%s?_foreign_keys=on", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	q := newQueue(db, 1024)
	q.start()

	return &Store{
		db: db,
		q:  q,
		strats: map[string]Strategy{
			StrategyDefault:     defaultStrategy{},
			StrategyTrainingRow: trainingRowStrategy{},
			StrategyNGram:       ngramStrategy{},
		},
	}, nil
}

// Register replaces or adds a named write strategy, per spec §4.7's
// pluggable-strategy requirement.
func (s *Store) Register(name string, strat Strategy) {
	s.strats[name] = strat
}

// SetMaintenanceMode pauses or resumes the write queue between items.
// Reads are unaffected.
func (s *Store) SetMaintenanceMode(on bool) {
	s.q.setMaintenanceMode(on)
}

func (s *Store) MaintenanceMode() bool {
	return s.q.maintenanceMode()
}

// QueueDepth reports the number of writes currently buffered ahead of
// the writer goroutine. Satisfies telemetry.QueueDepthSource.
func (s *Store) QueueDepth() int {
	return len(s.q.items)
}

// Close drains the write queue, stops the maintenance scheduler (if
// started), and closes the database handle.
func (s *Store) Close() error {
	_ = s.StopMaintenance()
	s.q.close()
	return s.db.Close()
}

// Write enqueues payload to be applied by the named strategy. The call
// returns immediately; the write lands asynchronously on the single
// writer goroutine.
func (s *Store) Write(strategy string, payload any) error {
	strat, ok := s.strats[strategy]
	if !ok {
		return fmt.Errorf("persistence: unknown strategy %q", strategy)
	}
	s.q.enqueue(func(tx *sqlx.Tx) error { return strat.Apply(tx, payload) })
	return nil
}

// EnqueueTrainingRow implements extraction.TrainingSink.
func (s *Store) EnqueueTrainingRow(row extraction.TrainingRow) {
	_ = s.Write(StrategyTrainingRow, trainingRowPayload{TsNanos: time.Now().UnixNano(), Row: row})
}

// EnqueueNGram implements extraction.TrainingSink.
func (s *Store) EnqueueNGram(t message.Type, side extraction.Side, n int, ts time.Time, c extraction.Counter) {
	ns := NamespaceQueryNGrams
	if side == extraction.SideBody {
		ns = NamespaceBodyNGrams
	}
	_ = s.Write(StrategyNGram, ngramPayload{Namespace: ns, Type: t, N: n, Ts: ts, Counter: c})
}

// Read fetches the current value of a default-strategy slot. The
// returned bytes are a private copy; ok is false if the slot is empty.
func (s *Store) Read(namespace, key string) ([]byte, bool, error) {
	q, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Question).
		Select("value").From("objects").
		Where(sq.Eq{"namespace": namespace, "key": key}).ToSql()
	if err != nil {
		return nil, false, err
	}
	var blob []byte
	if err := s.db.Get(&blob, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	return cp, true, nil
}

// ReadTrainingRows returns every persisted training row for typeKey in
// insertion order.
func (s *Store) ReadTrainingRows(typeKey string) ([]extraction.TrainingRow, error) {
	q, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Question).
		Select("label", "features", "message").From("training_rows").
		Where(sq.Eq{"type_key": typeKey}).OrderBy("ts_ns ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []extraction.TrainingRow
	for rows.Next() {
		var label int
		var featuresBlob, msgBlob []byte
		if err := rows.Scan(&label, &featuresBlob, &msgBlob); err != nil {
			return nil, err
		}
		row, err := decodeTrainingRow(label, featuresBlob, msgBlob)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ReadNGramPool returns the persisted Counter snapshots for (namespace,
// typeKey, n) in arrival order, matching the append order the training
// corpus was written in (spec §8's concatenation-in-arrival-order
// property).
func (s *Store) ReadNGramPool(namespace, typeKey string, n int) ([]extraction.Counter, error) {
	q, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Question).
		Select("counter").From("ngram_entries").
		Where(sq.Eq{"namespace": namespace, "type_key": typeKey, "n": n}).
		OrderBy("ts_ns ASC", "id ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []extraction.Counter
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		c, err := decodeCounter(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
