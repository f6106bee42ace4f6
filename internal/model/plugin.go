// Package model hosts the attack/no-attack decision plug-ins and the
// stage that wires them into the pipeline. The concrete scoring
// algorithm is a narrow, interchangeable plug-in contract, per spec
// §4.6 — only the lifecycle (per-type factory, untrained-deny,
// strictly-improving retrain) is specified.
package model

import "github.com/cc-sentinel/sentinel/internal/message"

// Plugin is the model plug-in contract of spec §4.6.
type Plugin interface {
	Name() string

	// Predict decides attack (1) or not (0) for a single request, with a
	// confidence score in [0,1]. An untrained per-type model must answer
	// (1, 1.0) — deny by default.
	Predict(typ message.Type, features map[string]any) (label int, score float64)

	// Train re-trains the per-type model from the supplied rows (already
	// filtered to typ). It is a no-op, not an error, when the gating
	// requirements (row count, per-label minimum) are not met, and it
	// retains the previous model unless the new one strictly improves.
	Train(typ message.Type, rows []TrainingRow) error
}

// TrainingRow mirrors extraction.TrainingRow; the model package does not
// import extraction to keep the per-type training inputs narrow and
// avoid a dependency the plugin contract does not need.
type TrainingRow struct {
	Features map[string]any
	Label    int
}

// Registry is the persistence-backed per-plugin model store. It is
// satisfied structurally by *persistence.Store.
type Registry interface {
	ReadModel(namespace, typeKey string, out any) (bool, error)
	WriteModel(namespace, typeKey string, state any) error
}
