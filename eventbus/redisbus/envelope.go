package redisbus

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore"
)

// envelope is the wire format of a published event.
type envelope struct {
	EventID        string              `json:"event_id"`
	AggregateType  string              `json:"aggregate_type"`
	AggregateID    string              `json:"aggregate_id"`
	SequenceNumber uint                `json:"sequence_number"`
	EventType      string              `json:"event_type"`
	OccurredAt     time.Time           `json:"occurred_at"`
	Payload        jsoniter.RawMessage `json:"payload"`
	Metadata       jsoniter.RawMessage `json:"metadata"`
}

func envelopeFromStorable(storable eventstore.StorableEvent) envelope {
	return envelope{
		EventID:        storable.EventID,
		AggregateType:  storable.AggregateType,
		AggregateID:    storable.AggregateID,
		SequenceNumber: storable.SequenceNumber,
		EventType:      storable.EventType,
		OccurredAt:     storable.OccurredAt,
		Payload:        jsoniter.RawMessage(storable.PayloadJSON),
		Metadata:       jsoniter.RawMessage(storable.MetadataJSON),
	}
}

func (e envelope) toStorable() (eventstore.StorableEvent, error) {
	return eventstore.BuildStorableEvent(
		eventstore.StreamPosition{
			EventID:        e.EventID,
			AggregateType:  e.AggregateType,
			AggregateID:    e.AggregateID,
			SequenceNumber: e.SequenceNumber,
		},
		e.EventType,
		e.OccurredAt,
		e.Payload,
		e.Metadata,
	)
}
