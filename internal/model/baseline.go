package model

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/cc-sentinel/sentinel/internal/message"
)

// minRows and minPerLabel are the training gate of spec §4.6.
const (
	minRows      = 5
	minPerLabel  = 3
	trainSplit   = 0.8
	namespaceKey = "lr_model_dict"
)

// modelState is one per-type trained (or untrained) model instance.
// Fields are exported so the JSON encoding the registry round-trips
// through is stable and human-inspectable.
type modelState struct {
	Trained   bool
	Score     float64
	Centroid  map[string]float64
	Threshold float64
}

// BaselinePlugin is a deterministic nearest-centroid anomaly detector:
// it learns the centroid of "normal" (label 0) requests in feature
// space and flags requests whose distance from it exceeds a threshold
// picked from the training split. There is no ecosystem machine-learning
// library in the example corpus this could be grounded on, and spec
// §1 explicitly treats the concrete algorithm as out of scope — the
// plug-in contract is what is specified, so a small, auditable
// standard-library implementation fills the slot. See DESIGN.md.
type BaselinePlugin struct {
	mu       sync.Mutex
	registry Registry
	states   map[string]*atomic.Pointer[modelState]
}

// NewBaselinePlugin wires a plugin against a persistence registry; reg
// may be nil for tests that never persist.
func NewBaselinePlugin(reg Registry) *BaselinePlugin {
	return &BaselinePlugin{registry: reg, states: make(map[string]*atomic.Pointer[modelState])}
}

func (p *BaselinePlugin) Name() string { return "baseline" }

func (p *BaselinePlugin) stateFor(typeKey string) *atomic.Pointer[modelState] {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ptr, ok := p.states[typeKey]; ok {
		return ptr
	}

	ptr := &atomic.Pointer[modelState]{}
	st := &modelState{}
	if p.registry != nil {
		if ok, err := p.registry.ReadModel(namespaceKey, typeKey, st); err == nil && ok {
			ptr.Store(st)
		} else {
			ptr.Store(&modelState{})
		}
	} else {
		ptr.Store(&modelState{})
	}
	p.states[typeKey] = ptr
	return ptr
}

// Predict implements Plugin.
func (p *BaselinePlugin) Predict(typ message.Type, features map[string]any) (int, float64) {
	st := p.stateFor(typ.String()).Load()
	if !st.Trained {
		return 1, 1.0
	}

	dist := distanceToCentroid(features, st.Centroid)
	if dist > st.Threshold {
		return 1, clamp01(dist / (dist + st.Threshold + 1e-9))
	}
	return 0, clamp01(st.Threshold / (dist + st.Threshold + 1e-9))
}

// Train implements Plugin. rows must already be filtered to typ.
func (p *BaselinePlugin) Train(typ message.Type, rows []TrainingRow) error {
	var label0, label1 int
	for _, r := range rows {
		if r.Label == 0 {
			label0++
		} else {
			label1++
		}
	}
	if len(rows) < minRows || label0 < minPerLabel || label1 < minPerLabel {
		return nil
	}

	splitAt := int(float64(len(rows)) * trainSplit)
	if splitAt < 1 {
		splitAt = 1
	}
	if splitAt >= len(rows) {
		splitAt = len(rows) - 1
	}
	trainRows, testRows := rows[:splitAt], rows[splitAt:]

	centroid, normalDists, anomalyDists := fitCentroid(trainRows)
	if len(centroid) == 0 {
		return nil
	}
	threshold := pickThreshold(normalDists, anomalyDists)

	correct := 0
	for _, r := range testRows {
		dist := distanceToCentroid(r.Features, centroid)
		predicted := 0
		if dist > threshold {
			predicted = 1
		}
		if predicted == r.Label {
			correct++
		}
	}
	score := 0.0
	if len(testRows) > 0 {
		score = float64(correct) / float64(len(testRows))
	}

	ptr := p.stateFor(typ.String())
	current := ptr.Load()
	if current.Trained && score <= current.Score {
		return nil
	}

	next := &modelState{Trained: true, Score: score, Centroid: centroid, Threshold: threshold}
	ptr.Store(next)

	if p.registry == nil {
		return nil
	}
	return p.registry.WriteModel(namespaceKey, typ.String(), next)
}

func fitCentroid(trainRows []TrainingRow) (centroid map[string]float64, normalDists, anomalyDists []float64) {
	sum := map[string]float64{}
	var normalCount int
	for _, r := range trainRows {
		if r.Label != 0 {
			continue
		}
		normalCount++
		for k, v := range r.Features {
			if nv, ok := numericValue(v); ok {
				sum[k] += nv
			}
		}
	}
	if normalCount == 0 {
		return nil, nil, nil
	}
	centroid = make(map[string]float64, len(sum))
	for k, s := range sum {
		centroid[k] = s / float64(normalCount)
	}

	for _, r := range trainRows {
		d := distanceToCentroid(r.Features, centroid)
		if r.Label == 0 {
			normalDists = append(normalDists, d)
		} else {
			anomalyDists = append(anomalyDists, d)
		}
	}
	return centroid, normalDists, anomalyDists
}

// pickThreshold sits midway between the mean normal distance and the
// mean anomalous distance; with no anomalous training examples it
// falls back to 1.5x the maximum observed normal distance.
func pickThreshold(normalDists, anomalyDists []float64) float64 {
	normalMean := mean(normalDists)
	if len(anomalyDists) == 0 {
		return maxOf(normalDists)*1.5 + 1e-9
	}
	anomalyMean := mean(anomalyDists)
	return (normalMean + anomalyMean) / 2
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func maxOf(vs []float64) float64 {
	m := 0.0
	for _, v := range vs {
		if v > m {
			m = v
		}
	}
	return m
}

func distanceToCentroid(features map[string]any, centroid map[string]float64) float64 {
	sumSq := 0.0
	for k, c := range centroid {
		v, _ := numericValue(features[k])
		d := v - c
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}

func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
