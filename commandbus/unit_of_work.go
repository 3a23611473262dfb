package commandbus

import (
	"time"
)

// UnitOfWork collects the events produced by exactly one command execution.
//
// Handlers record events with Apply, which mutates the live aggregate and registers the event
// for storage and publication, in that order of emission. PublishOnly registers an event for
// publication without storing it in the aggregate's stream.
//
// A UnitOfWork belongs to one work slot and is reset, not reallocated, for each cycle.
// The slices returned by EventsToStore and EventsToPublish are only valid until the slot is reused,
// collaborators must copy them if they retain events.
type UnitOfWork struct {
	aggregate           Aggregate
	aggregateIdentifier string
	lastSequenceNumber  uint
	correlationID       any
	causationID         string
	eventsToStore       EventMessages
	eventsToPublish     EventMessages
	clock               func() time.Time
}

func newUnitOfWork(clock func() time.Time) *UnitOfWork {
	return &UnitOfWork{
		eventsToStore:   make(EventMessages, 0, 4),
		eventsToPublish: make(EventMessages, 0, 4),
		clock:           clock,
	}
}

// reset clears all state of the previous cycle, keeping the allocated event slices.
func (uow *UnitOfWork) reset() {
	uow.aggregate = nil
	uow.aggregateIdentifier = ""
	uow.lastSequenceNumber = 0
	uow.correlationID = nil
	uow.causationID = ""
	uow.discard()
}

// bind attaches the preloaded aggregate and the command being executed.
func (uow *UnitOfWork) bind(aggregate Aggregate, lastSequenceNumber uint, command CommandMessage) {
	uow.aggregate = aggregate
	uow.aggregateIdentifier = aggregate.AggregateIdentifier()
	uow.lastSequenceNumber = lastSequenceNumber
	uow.correlationID, _ = command.MetadataValue(CorrelationIDKey)
	uow.causationID = command.Identifier()
}

// discard drops all recorded events.
func (uow *UnitOfWork) discard() {
	clear(uow.eventsToStore)
	clear(uow.eventsToPublish)
	uow.eventsToStore = uow.eventsToStore[:0]
	uow.eventsToPublish = uow.eventsToPublish[:0]
}

// Apply applies the event to the aggregate and records it for storage and publication.
func (uow *UnitOfWork) Apply(event DomainEvent) EventMessage {
	return uow.ApplyWithMetadata(event, nil)
}

// ApplyWithMetadata is Apply with additional event metadata.
// Correlation and causation IDs are always derived from the command.
func (uow *UnitOfWork) ApplyWithMetadata(event DomainEvent, metadata Metadata) EventMessage {
	if uow.aggregate != nil {
		uow.aggregate.Apply(event)
	}

	sequenceNumber := uow.lastSequenceNumber + uint(len(uow.eventsToStore)) + 1 //nolint:gosec
	message := BuildEventMessage(uow.aggregateIdentifier, sequenceNumber, event, uow.eventMetadata(metadata), uow.clock())

	uow.eventsToStore = append(uow.eventsToStore, message)
	uow.eventsToPublish = append(uow.eventsToPublish, message)

	return message
}

// PublishOnly records an event that is published on the EventBus but not stored in the aggregate's stream.
func (uow *UnitOfWork) PublishOnly(event DomainEvent) EventMessage {
	message := BuildEventMessage(uow.aggregateIdentifier, 0, event, uow.eventMetadata(nil), uow.clock())
	uow.eventsToPublish = append(uow.eventsToPublish, message)

	return message
}

// AggregateIdentifier returns the identifier of the aggregate the events belong to.
func (uow *UnitOfWork) AggregateIdentifier() string {
	return uow.aggregateIdentifier
}

// EventsToStore returns the events to append to the aggregate's stream, in emission order.
func (uow *UnitOfWork) EventsToStore() EventMessages {
	return uow.eventsToStore
}

// EventsToPublish returns the events to publish, in emission order.
func (uow *UnitOfWork) EventsToPublish() EventMessages {
	return uow.eventsToPublish
}

func (uow *UnitOfWork) eventMetadata(additional Metadata) Metadata {
	metadata := make(Metadata, len(additional)+2)
	for k, v := range additional {
		metadata[k] = v
	}

	if uow.correlationID != nil {
		metadata[CorrelationIDKey] = uow.correlationID
	}

	if uow.causationID != "" {
		metadata[CausationIDKey] = uow.causationID
	}

	return metadata
}
