package extraction

import (
	"sync"
	"time"

	"github.com/cc-sentinel/sentinel/internal/message"
)

// retentionThreshold prunes n-gram keys whose normalized weight across the
// whole pool falls below this fraction of total observed mass, per
// spec §4.5.2 step 6.
const retentionThreshold = 1e-4

// Side identifies which half of a request a pool/feature applies to.
type Side string

const (
	SideQuery Side = "query"
	SideBody  Side = "body"
)

type bucketKey struct {
	t    message.Type
	side Side
}

// pool is the append-only sequence of prior Counters for one
// (type, side, n) bucket.
type pool struct {
	entries []Counter
}

// bucket groups the three n-gram pools (n=1,2,6) sharing one mutex per
// (type, side), per spec §5's "coordination may be per-type" guidance —
// all three scores for a request are computed together, so a single lock
// per bucket avoids three independent lock round-trips.
type bucket struct {
	mu    sync.Mutex
	pools map[int]*pool
}

func newBucket() *bucket {
	return &bucket{pools: make(map[int]*pool)}
}

func (b *bucket) pool(n int) *pool {
	p, ok := b.pools[n]
	if !ok {
		p = &pool{}
		b.pools[n] = p
	}
	return p
}

// Manager owns every (type, side) n-gram bucket for the lifetime of the
// process.
type Manager struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
}

// NewManager creates an empty n-gram manager.
func NewManager() *Manager {
	return &Manager{buckets: make(map[bucketKey]*bucket)}
}

func (m *Manager) bucketFor(t message.Type, side Side) *bucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := bucketKey{t: t, side: side}
	b, ok := m.buckets[key]
	if !ok {
		b = newBucket()
		m.buckets[key] = b
	}
	return b
}

// Score implements the rolling n-gram score of spec §4.5.2: it appends the
// current request's Counter to the in-memory pool (unconditionally — the
// persisted copy is the caller's job, gated on training mode), unions the
// whole pool, prunes rare keys, and returns the fraction of the current
// Counter's mass that falls within the retained "common vocabulary".
//
// When persist is non-nil (training mode), it is invoked with a deep copy
// of the freshly appended Counter so the caller can enqueue it to the
// store without holding this bucket's lock.
func (m *Manager) Score(t message.Type, side Side, n int, data string, now time.Time, persist func(Counter)) float64 {
	current := NGrams(data, n)
	currentTotal := current.total()
	if currentTotal == 0 {
		return 0.0
	}

	b := m.bucketFor(t, side)
	b.mu.Lock()
	p := b.pool(n)
	p.entries = append(p.entries, current)
	union := unionSum(p.entries)
	b.mu.Unlock()

	total := union.total()
	retained := make(map[string]struct{}, len(union))
	if total > 0 {
		for k, v := range union {
			if float64(v)/float64(total) >= retentionThreshold {
				retained[k] = struct{}{}
			}
		}
	}

	occurrence := 0
	for k, v := range current {
		if _, ok := retained[k]; ok {
			occurrence += v
		}
	}

	if persist != nil {
		persist(current.clone())
	}

	return float64(occurrence) / float64(currentTotal)
}
