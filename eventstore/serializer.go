package eventstore

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

type registeredType struct {
	typ       reflect.Type
	isPointer bool
}

// Serializer converts between commandbus.EventMessage and StorableEvent.
//
// Payloads are encoded as JSON. To decode them back, every DomainEvent type must be registered with
// a prototype value, the registry maps the EventType() name to the Go type.
// A Serializer is safe for concurrent use.
type Serializer struct {
	mu    sync.RWMutex
	types map[string]registeredType
	json  jsoniter.API
}

// NewSerializer creates a Serializer with the given event prototypes registered.
func NewSerializer(prototypes ...commandbus.DomainEvent) *Serializer {
	s := &Serializer{
		types: make(map[string]registeredType),
		json:  jsoniter.ConfigFastest,
	}

	s.Register(prototypes...)

	return s
}

// Register adds event types to the registry. Registering the same event type again replaces it.
// Pointer prototypes are decoded into pointers, value prototypes into values.
func (s *Serializer) Register(prototypes ...commandbus.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, prototype := range prototypes {
		t := reflect.TypeOf(prototype)
		entry := registeredType{typ: t}

		if t.Kind() == reflect.Pointer {
			entry = registeredType{typ: t.Elem(), isPointer: true}
		}

		s.types[prototype.EventType()] = entry
	}
}

// ToStorable encodes an EventMessage of the given aggregate type.
func (s *Serializer) ToStorable(aggregateType string, event commandbus.EventMessage) (StorableEvent, error) {
	if event.Payload == nil {
		return StorableEvent{}, ErrEmptyEventType
	}

	payloadJSON, err := s.json.Marshal(event.Payload)
	if err != nil {
		return StorableEvent{}, errors.Join(ErrSerializingEventFailed, err)
	}

	metadata := event.Metadata
	if metadata == nil {
		metadata = commandbus.Metadata{}
	}

	metadataJSON, err := s.json.Marshal(metadata)
	if err != nil {
		return StorableEvent{}, errors.Join(ErrSerializingEventFailed, err)
	}

	return BuildStorableEvent(
		StreamPosition{
			EventID:        event.Identifier,
			AggregateType:  aggregateType,
			AggregateID:    event.AggregateIdentifier,
			SequenceNumber: event.SequenceNumber,
		},
		event.EventType(),
		event.OccurredAt,
		payloadJSON,
		metadataJSON,
	)
}

// ToStorableEvents encodes the events of one append. All of them must belong to the same aggregate.
func (s *Serializer) ToStorableEvents(aggregateType string, events commandbus.EventMessages) (StorableEvents, error) {
	storables := make(StorableEvents, 0, len(events))

	for _, event := range events {
		if event.AggregateIdentifier != events[0].AggregateIdentifier {
			return nil, ErrMixedAggregateStreams
		}

		storable, err := s.ToStorable(aggregateType, event)
		if err != nil {
			return nil, err
		}

		storables = append(storables, storable)
	}

	return storables, nil
}

// FromStorable decodes a StorableEvent into an EventMessage.
func (s *Serializer) FromStorable(storable StorableEvent) (commandbus.EventMessage, error) {
	s.mu.RLock()
	entry, ok := s.types[storable.EventType]
	s.mu.RUnlock()

	if !ok {
		return commandbus.EventMessage{}, errors.Join(ErrUnknownEventType, fmt.Errorf("event type %q", storable.EventType))
	}

	target := reflect.New(entry.typ)
	if err := s.json.Unmarshal(storable.PayloadJSON, target.Interface()); err != nil {
		return commandbus.EventMessage{}, errors.Join(ErrDeserializingEventFailed, err)
	}

	decoded := target.Interface()
	if !entry.isPointer {
		decoded = target.Elem().Interface()
	}

	payload, ok := decoded.(commandbus.DomainEvent)
	if !ok {
		return commandbus.EventMessage{}, errors.Join(ErrDeserializingEventFailed, fmt.Errorf("%T is no domain event", decoded))
	}

	metadata := commandbus.Metadata{}
	if len(storable.MetadataJSON) > 0 {
		if err := s.json.Unmarshal(storable.MetadataJSON, &metadata); err != nil {
			return commandbus.EventMessage{}, errors.Join(ErrDeserializingEventFailed, err)
		}
	}

	return commandbus.EventMessage{
		Identifier:          storable.EventID,
		AggregateIdentifier: storable.AggregateID,
		SequenceNumber:      storable.SequenceNumber,
		Payload:             payload,
		Metadata:            metadata,
		OccurredAt:          storable.OccurredAt,
	}, nil
}

// FromStorableEvents decodes a stream, keeping its order.
func (s *Serializer) FromStorableEvents(storables StorableEvents) (commandbus.EventMessages, error) {
	events := make(commandbus.EventMessages, 0, len(storables))

	for _, storable := range storables {
		event, err := s.FromStorable(storable)
		if err != nil {
			return nil, err
		}

		events = append(events, event)
	}

	return events, nil
}
