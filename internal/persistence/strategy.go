package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/cc-sentinel/sentinel/internal/extraction"
	"github.com/cc-sentinel/sentinel/internal/message"
)

// Strategy names, selected by Store.Write. Each corresponds to one of
// the three write shapes of spec §4.7: a named last-writer-wins slot,
// an append-only labelled row, and an append-only n-gram snapshot.
const (
	StrategyDefault     = "default"
	StrategyTrainingRow = "training-row"
	StrategyNGram       = "ngram"
)

// Strategy builds the statements a queued write applies within a
// single transaction. Implementations must not retain tx beyond the
// call.
type Strategy interface {
	Apply(tx *sqlx.Tx, payload any) error
}

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// ObjectWrite is the payload for StrategyDefault: a deep-copied value
// stored under a namespace/key slot, overwriting whatever was there.
type ObjectWrite struct {
	Namespace string
	Key       string
	Value     any
}

type defaultStrategy struct{}

func (defaultStrategy) Apply(tx *sqlx.Tx, payload any) error {
	w, ok := payload.(ObjectWrite)
	if !ok {
		return fmt.Errorf("persistence: default strategy got %T, want ObjectWrite", payload)
	}
	blob, err := json.Marshal(w.Value)
	if err != nil {
		return err
	}
	q, args, err := builder.Insert("objects").
		Columns("namespace", "key", "value", "updated_at").
		Values(w.Namespace, w.Key, blob, nowNanos()).
		Suffix("ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, args...)
	return err
}

type trainingRowStrategy struct{}

// trainingRowPayload is what extraction.TrainingRow is translated into
// before it reaches the queue: the insertion timestamp is the ordering
// key of the append-only corpus, per spec §3.
type trainingRowPayload struct {
	TsNanos int64
	Row     extraction.TrainingRow
}

func (trainingRowStrategy) Apply(tx *sqlx.Tx, payload any) error {
	p, ok := payload.(trainingRowPayload)
	if !ok {
		return fmt.Errorf("persistence: training-row strategy got %T, want trainingRowPayload", payload)
	}
	features, err := json.Marshal(p.Row.Features)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(p.Row.Message)
	if err != nil {
		return err
	}
	q, args, err := builder.Insert("training_rows").
		Columns("ts_ns", "type_key", "label", "features", "message").
		Values(p.TsNanos, p.Row.Type.String(), p.Row.Label, features, msg).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, args...)
	return err
}

type ngramStrategy struct{}

// ngramPayload is one append to the (namespace, type, n) n-gram pool.
type ngramPayload struct {
	Namespace string
	Type      message.Type
	N         int
	Ts        time.Time
	Counter   extraction.Counter
}

func (ngramStrategy) Apply(tx *sqlx.Tx, payload any) error {
	p, ok := payload.(ngramPayload)
	if !ok {
		return fmt.Errorf("persistence: ngram strategy got %T, want ngramPayload", payload)
	}
	encoded, err := encodeCounter(p.Counter)
	if err != nil {
		return err
	}
	q, args, err := builder.Insert("ngram_entries").
		Columns("namespace", "type_key", "n", "ts_ns", "counter").
		Values(p.Namespace, p.Type.String(), p.N, p.Ts.UnixNano(), encoded).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(q, args...)
	return err
}

func nowNanos() int64 { return time.Now().UnixNano() }
