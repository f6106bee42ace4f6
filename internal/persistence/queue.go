package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"github.com/cc-sentinel/sentinel/internal/slog"
)

// defaultWriteRate and defaultWriteBurst cap how fast the drain
// goroutine commits transactions, so a burst of producers fills the
// channel buffer (ordinary backpressure against enqueue) rather than
// saturating sqlite with a tight commit loop.
const (
	defaultWriteRate  = 500
	defaultWriteBurst = 50
)

// writeItem is one unit of queued work: a closure that performs its
// writes against a transaction handed to it by the queue goroutine.
type writeItem struct {
	apply func(tx *sqlx.Tx) error
}

// queue is the single writer goroutine that serializes every mutation
// against the sqlite handle, mirroring the archivingWorker pattern of
// draining a buffered channel from one goroutine so that sqlite's
// single-connection constraint is never contended. See spec §4.7 and
// §5 (single-writer persistence).
type queue struct {
	db    *sqlx.DB
	items chan writeItem
	wg    sync.WaitGroup

	maintenance atomic.Bool
	limiter     *rate.Limiter
}

func newQueue(db *sqlx.DB, capacity int) *queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &queue{
		db:      db,
		items:   make(chan writeItem, capacity),
		limiter: rate.NewLimiter(rate.Limit(defaultWriteRate), defaultWriteBurst),
	}
}

func (q *queue) start() {
	q.wg.Add(1)
	go q.run()
}

func (q *queue) run() {
	defer q.wg.Done()
	for item := range q.items {
		for q.maintenance.Load() {
			time.Sleep(50 * time.Millisecond)
		}
		if err := q.limiter.Wait(context.Background()); err != nil {
			slog.Warnf("persistence: write rate limiter: %v", err)
		}
		if err := q.exec(item); err != nil {
			slog.Errorf("persistence: write failed: %v", err)
		}
	}
}

func (q *queue) exec(item writeItem) error {
	tx, err := q.db.Beginx()
	if err != nil {
		return err
	}
	if err := item.apply(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// enqueue hands a write to the queue. It never blocks the caller on
// the write itself — only on channel capacity, which backpressures a
// runaway producer rather than losing writes silently.
func (q *queue) enqueue(apply func(tx *sqlx.Tx) error) {
	q.items <- writeItem{apply: apply}
}

// setMaintenanceMode pauses (true) or resumes (false) the writer
// goroutine between items, per spec §4.7's maintenance-mode pause.
func (q *queue) setMaintenanceMode(on bool) {
	q.maintenance.Store(on)
}

func (q *queue) maintenanceMode() bool {
	return q.maintenance.Load()
}

func (q *queue) close() {
	close(q.items)
	q.wg.Wait()
}
