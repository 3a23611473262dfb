package core

import (
	"errors"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

// ErrUnexpectedCommandPayload is returned by handlers subscribed for a command type they can't decode.
var ErrUnexpectedCommandPayload = errors.New("unexpected command payload")

// DecisionOutcome represents the result type of business decision.
type DecisionOutcome string

const (
	DecisionSuccess    DecisionOutcome = "success"
	DecisionIdempotent DecisionOutcome = "idempotent"
	DecisionError      DecisionOutcome = "error"
)

// DecisionResult encapsulates the outcome of a business decision with explicit state.
type DecisionResult struct {
	Outcome DecisionOutcome
	Event   commandbus.DomainEvent
	Reason  string
}

// SuccessDecision creates a successful decision result with an event to store.
func SuccessDecision(event commandbus.DomainEvent) DecisionResult {
	return DecisionResult{
		Outcome: DecisionSuccess,
		Event:   event,
	}
}

// IdempotentDecision creates an idempotent decision result (no event to store).
func IdempotentDecision() DecisionResult {
	return DecisionResult{
		Outcome: DecisionIdempotent,
	}
}

// ErrorDecision creates a business rule violation result with a failure event to publish.
func ErrorDecision(event commandbus.DomainEvent, reason string) DecisionResult {
	return DecisionResult{
		Outcome: DecisionError,
		Event:   event,
		Reason:  reason,
	}
}

// Record hands the decision to the unit of work.
//
// A success is applied, so it is stored and published. A rejection is published only: the account's
// stream stays unchanged and the cycle is not faulted, subscribers learn about it from the failure event.
func (r DecisionResult) Record(uow *commandbus.UnitOfWork) {
	switch r.Outcome {
	case DecisionSuccess:
		uow.Apply(r.Event)
	case DecisionError:
		uow.PublishOnly(r.Event)
	case DecisionIdempotent:
	}
}
