// Package typing implements the path-reliability trie: per-method path
// classification against an a-priori "core" topology, continuously scored
// by the empirical fraction of parent traffic each branch actually
// received. See spec §4.4.
package typing

import (
	"context"
	"fmt"
	"time"

	"github.com/cc-sentinel/sentinel/internal/message"
	"github.com/cc-sentinel/sentinel/internal/pipeline"
)

// Stage wires the trie into the pipeline: it inserts the request's path,
// recomputes reliability, and either forwards to Successor or alerts and
// stops.
type Stage struct {
	pipeline.Bus

	Tree      *Tree
	Successor pipeline.Stage

	// Now defaults to time.Now but is overridable for deterministic tests.
	Now func() time.Time
}

// NewStage constructs a typing stage over an already-bootstrapped tree.
func NewStage(tree *Tree, successor pipeline.Stage) *Stage {
	return &Stage{Tree: tree, Successor: successor, Now: time.Now}
}

// Run implements pipeline.Stage.
func (s *Stage) Run(ctx context.Context, d pipeline.DTO) error {
	in, ok := d.(pipeline.FilterTyping)
	if !ok {
		return &pipeline.ContractError{Stage: "typing", Got: d}
	}

	now := s.Now()
	node := s.Tree.Insert(in.Message.Method, in.Message.Path, now)

	if node.PathReliability < s.Tree.cfg.Threshold {
		s.Notify(s, pipeline.Alert{
			Message: fmt.Sprintf("Path unreliable (%v)", node.PathReliability),
			Source:  "Typing Stage",
		})
		return pipeline.ErrDropped
	}

	if s.Successor == nil {
		return nil
	}

	return s.Successor.Run(ctx, pipeline.TypingExtraction{
		Message: in.Message,
		Type:    message.TypeOf(in.Message),
	})
}
