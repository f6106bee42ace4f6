package typing

import "time"

// Bucket is a (bucket_start, count) pair used by the medium and long
// horizons once timestamps have been compacted out of the short horizon.
type Bucket struct {
	Start time.Time
	Count int
}

// Config holds the three horizon widths and the path-reliability alert
// threshold. Exposed as configuration per spec §9 rather than hard-coded,
// since the source the spec was distilled from shipped 1h/24h/7d in
// comments but 5s/20s/100s in the actual test build.
type Config struct {
	ShortHorizon  time.Duration // T_s, target 1h
	MediumHorizon time.Duration // T_m, target 24h
	LongHorizon   time.Duration // T_l, target 7d
	Threshold     float64       // alert iff path_reliability < Threshold
}

// DefaultConfig matches the spec's stated production targets.
func DefaultConfig() Config {
	return Config{
		ShortHorizon:  time.Hour,
		MediumHorizon: 24 * time.Hour,
		LongHorizon:   7 * 24 * time.Hour,
		Threshold:     0.2,
	}
}

// Horizons is the per-node set of three sliding-window observation
// sequences described in spec §3. All mutation happens while the owning
// Tree's mutex is held, so no internal locking is needed here.
type Horizons struct {
	Short  []time.Time
	Medium []Bucket
	Long   []Bucket
}

// Append records a new observation at ts and runs aggregation so no
// horizon ever holds entries older than its window.
func (h *Horizons) Append(ts time.Time, cfg Config) {
	h.Short = append(h.Short, ts)
	h.Aggregate(ts, cfg)
}

// Aggregate compacts entries older than each horizon's window into the
// next coarser horizon, and drops long-term buckets past T_l. It is
// idempotent: running it twice with the same ts leaves the state
// unchanged, since after the first pass no remaining entry is old enough
// to move again.
//
// Implemented as two age-ordered drains from the head of each slice
// (oldest first) rather than mutate-while-iterate, per the redesign flag
// on the original's in-place iteration bug.
func (h *Horizons) Aggregate(ts time.Time, cfg Config) {
	i := 0
	for i < len(h.Short) && ts.Sub(h.Short[i]) > cfg.ShortHorizon {
		t := h.Short[i]
		if len(h.Medium) == 0 || t.Sub(h.Medium[len(h.Medium)-1].Start) > cfg.ShortHorizon {
			h.Medium = append(h.Medium, Bucket{Start: t, Count: 1})
		} else {
			h.Medium[len(h.Medium)-1].Count++
		}
		i++
	}
	if i > 0 {
		h.Short = h.Short[i:]
	}

	j := 0
	for j < len(h.Medium) && ts.Sub(h.Medium[j].Start) > cfg.MediumHorizon {
		b := h.Medium[j]
		if len(h.Long) == 0 || b.Start.Sub(h.Long[len(h.Long)-1].Start) > cfg.MediumHorizon {
			h.Long = append(h.Long, Bucket{Start: b.Start, Count: b.Count})
		} else {
			h.Long[len(h.Long)-1].Count += b.Count
		}
		j++
	}
	if j > 0 {
		h.Medium = h.Medium[j:]
	}

	k := 0
	for k < len(h.Long) && ts.Sub(h.Long[k].Start) > cfg.LongHorizon {
		k++
	}
	if k > 0 {
		h.Long = h.Long[k:]
	}
}

// ShortLen is len(short-term).
func (h *Horizons) ShortLen() int { return len(h.Short) }

// MediumSum is Σ medium-bucket counts.
func (h *Horizons) MediumSum() int {
	sum := 0
	for _, b := range h.Medium {
		sum += b.Count
	}
	return sum
}

// LongSum is Σ long-bucket counts.
func (h *Horizons) LongSum() int {
	sum := 0
	for _, b := range h.Long {
		sum += b.Count
	}
	return sum
}

// Total is the total observed count at this node across all three
// horizons.
func (h *Horizons) Total() int {
	return h.ShortLen() + h.MediumSum() + h.LongSum()
}
