// Package pipeline defines the stage contract, the tagged DTO variants that
// flow across stage boundaries, and the observer bus each stage exposes for
// alerting.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/cc-sentinel/sentinel/internal/message"
)

// ErrDropped is returned by Run when a stage short-circuits the request
// after raising an alert (filter reject, unreliable path, model attack
// verdict). It is not a failure of the stage itself — acquisition uses
// it to decide the client-facing response (spec §7's "clean 403 is the
// expected refinement") instead of forwarding upstream.
var ErrDropped = errors.New("pipeline: request dropped")

// DTO is the marker interface implemented by every inter-stage value. The
// dto() method exists only to close the set of implementers — a stage that
// receives a DTO not matching the variant it expects returns a
// *ContractError, per spec §4.1 and §7.
type DTO interface {
	dto()
}

// AcquisitionFilter carries the raw message from acquisition into filter.
type AcquisitionFilter struct {
	Message *message.HTTP
}

// FilterTyping carries the message from filter into typing.
type FilterTyping struct {
	Message *message.HTTP
}

// TypingExtraction carries the message plus its resolved type from typing
// into extraction.
type TypingExtraction struct {
	Message *message.HTTP
	Type    message.Type
}

// ExtractionModel carries the extracted feature map plus type from
// extraction into model.
type ExtractionModel struct {
	Features map[string]any
	Message  *message.HTTP
	Type     message.Type
}

func (AcquisitionFilter) dto() {}
func (FilterTyping) dto()      {}
func (TypingExtraction) dto()  {}
func (ExtractionModel) dto()   {}

// ContractError signals that a stage received a DTO of the wrong variant.
// Per spec §7 this is fatal to the process: the pipeline is mis-wired.
type ContractError struct {
	Stage string
	Got   DTO
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("pipeline-contract: stage %q received unexpected DTO %T", e.Stage, e.Got)
}

// Alert is a value-typed, log-only verdict raised by a stage that
// short-circuits the pipeline.
type Alert struct {
	Message string
	Source  string
}

// Observer receives alerts from a stage. Implementations must be safe for
// concurrent use and must not block — long work belongs on its own
// goroutine.
type Observer interface {
	Update(source Stage, alert Alert)
}

// Stage is the uniform contract every pipeline stage implements.
type Stage interface {
	// Run advances the pipeline. It returns nil when the DTO was forwarded
	// successfully (whether or not a successor exists), ErrDropped when the
	// stage raised an alert and stopped the request, and a *ContractError
	// if dto did not match the variant this stage expects.
	Run(ctx context.Context, dto DTO) error

	Attach(o Observer)
	Detach(o Observer)
}

// Bus is an embeddable per-instance observer list. Stages compose it
// instead of inheriting from a shared base, per the redesign flag on
// "observer list stored as a mutable class attribute".
type Bus struct {
	observers []Observer
}

func (b *Bus) Attach(o Observer) {
	b.observers = append(b.observers, o)
}

func (b *Bus) Detach(o Observer) {
	for i, existing := range b.observers {
		if existing == o {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			return
		}
	}
}

// Notify invokes every observer's Update in registration order.
func (b *Bus) Notify(self Stage, alert Alert) {
	for _, o := range b.observers {
		o.Update(self, alert)
	}
}
