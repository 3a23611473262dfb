package eventstore

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// StorableEvents is an alias type for a slice of StorableEvent.
type StorableEvents = []StorableEvent

// StorableEvent is a DTO (data transfer object) used by the engines to append events and read them back.
//
// It is built on scalars to be completely agnostic of the implementation of Domain Events in the client code,
// the Serializer converts between StorableEvent and commandbus.EventMessage.
//
// While its properties are exported, it should only be constructed with the supplied factory methods:
//   - BuildStorableEvent
//   - BuildStorableEventWithEmptyMetadata
type StorableEvent struct {
	EventID        string
	AggregateType  string
	AggregateID    string
	SequenceNumber uint
	EventType      string
	OccurredAt     time.Time
	PayloadJSON    []byte
	MetadataJSON   []byte
}

// StreamPosition identifies an event within its aggregate stream.
type StreamPosition struct {
	EventID        string
	AggregateType  string
	AggregateID    string
	SequenceNumber uint
}

// BuildStorableEvent is a factory method for StorableEvent.
//
// Returns an error if the event type is empty or payloadJSON or metadataJSON are not valid JSON.
func BuildStorableEvent(
	position StreamPosition,
	eventType string,
	occurredAt time.Time,
	payloadJSON []byte,
	metadataJSON []byte,
) (StorableEvent, error) {

	if eventType == "" {
		return StorableEvent{}, ErrEmptyEventType
	}

	if !jsoniter.ConfigFastest.Valid(payloadJSON) {
		return StorableEvent{}, ErrInvalidPayloadJSON
	}

	if !jsoniter.ConfigFastest.Valid(metadataJSON) {
		return StorableEvent{}, ErrInvalidMetadataJSON
	}

	return StorableEvent{
		EventID:        position.EventID,
		AggregateType:  position.AggregateType,
		AggregateID:    position.AggregateID,
		SequenceNumber: position.SequenceNumber,
		EventType:      eventType,
		OccurredAt:     occurredAt,
		PayloadJSON:    payloadJSON,
		MetadataJSON:   metadataJSON,
	}, nil
}

// BuildStorableEventWithEmptyMetadata is BuildStorableEvent with valid empty JSON for MetadataJSON.
func BuildStorableEventWithEmptyMetadata(
	position StreamPosition,
	eventType string,
	occurredAt time.Time,
	payloadJSON []byte,
) (StorableEvent, error) {

	return BuildStorableEvent(position, eventType, occurredAt, payloadJSON, []byte("{}"))
}
