package commandbus

import (
	"errors"
)

// ErrAggregateIdentifierMismatch is returned when a replayed event belongs to another aggregate.
var ErrAggregateIdentifierMismatch = errors.New("event belongs to another aggregate")

// Aggregate is an event-sourced consistency boundary.
// Its state is only ever changed by applying events, both when replaying history and when
// handling a command.
type Aggregate interface {
	AggregateIdentifier() string
	Apply(event DomainEvent)
}

// AggregateFactory supplies aggregates of one type, reconstructed from their event streams.
type AggregateFactory[A Aggregate] interface {
	// TypeIdentifier returns the aggregate type name, used as the stream type in the EventStore.
	TypeIdentifier() string

	// CreateAggregate returns the aggregate with the given identifier, with the history applied.
	// An empty history yields a fresh aggregate.
	CreateAggregate(aggregateIdentifier string, history EventMessages) (A, error)
}

// EventSourcingFactory is an AggregateFactory replaying every event of the history
// onto a new instance created by its constructor function.
type EventSourcingFactory[A Aggregate] struct {
	typeIdentifier string
	newAggregate   func(aggregateIdentifier string) A
}

// NewEventSourcingFactory creates an EventSourcingFactory.
func NewEventSourcingFactory[A Aggregate](
	typeIdentifier string,
	newAggregate func(aggregateIdentifier string) A,
) EventSourcingFactory[A] {

	return EventSourcingFactory[A]{
		typeIdentifier: typeIdentifier,
		newAggregate:   newAggregate,
	}
}

// TypeIdentifier returns the aggregate type name.
func (f EventSourcingFactory[A]) TypeIdentifier() string {
	return f.typeIdentifier
}

// CreateAggregate creates a new instance and replays the history onto it.
func (f EventSourcingFactory[A]) CreateAggregate(aggregateIdentifier string, history EventMessages) (A, error) {
	aggregate := f.newAggregate(aggregateIdentifier)

	for _, event := range history {
		if event.AggregateIdentifier != aggregateIdentifier {
			var empty A
			return empty, ErrAggregateIdentifierMismatch
		}

		aggregate.Apply(event.Payload)
	}

	return aggregate, nil
}
