package commandbus

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents a business fact produced by a successful command execution.
type DomainEvent interface {
	// EventType returns the string identifier for this event type.
	EventType() string
}

// EventMessages is an alias type for a slice of EventMessage.
type EventMessages = []EventMessage

// EventMessage wraps a DomainEvent with its position in the aggregate's stream.
type EventMessage struct {
	Identifier          string
	AggregateIdentifier string
	SequenceNumber      uint
	Payload             DomainEvent
	Metadata            Metadata
	OccurredAt          time.Time
}

// BuildEventMessage is a factory method for EventMessage.
func BuildEventMessage(
	aggregateIdentifier string,
	sequenceNumber uint,
	payload DomainEvent,
	metadata Metadata,
	occurredAt time.Time,
) EventMessage {

	if metadata == nil {
		metadata = Metadata{}
	}

	return EventMessage{
		Identifier:          uuid.NewString(),
		AggregateIdentifier: aggregateIdentifier,
		SequenceNumber:      sequenceNumber,
		Payload:             payload,
		Metadata:            metadata,
		OccurredAt:          occurredAt.UTC().Truncate(time.Microsecond),
	}
}

// EventType returns the type of the wrapped payload.
func (e EventMessage) EventType() string {
	if e.Payload == nil {
		return ""
	}

	return e.Payload.EventType()
}
