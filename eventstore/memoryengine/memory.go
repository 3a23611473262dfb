package memoryengine

import (
	"context"
	"slices"
	"sync"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore"
)

type streamKey struct {
	aggregateType string
	aggregateID   string
}

// EventStore keeps per-aggregate streams in memory. It is safe for concurrent use.
type EventStore struct {
	mu      sync.RWMutex
	streams map[streamKey]commandbus.EventMessages
	logger  eventstore.Logger
}

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore)

// WithLogger sets a logger receiving debug messages for every append and conflict.
func WithLogger(logger eventstore.Logger) Option {
	return func(es *EventStore) {
		es.logger = logger
	}
}

// NewEventStore creates an empty EventStore.
func NewEventStore(options ...Option) *EventStore {
	es := &EventStore{streams: make(map[streamKey]commandbus.EventMessages)}

	for _, option := range options {
		option(es)
	}

	return es
}

var _ commandbus.EventStore = (*EventStore)(nil)

// ReadEvents returns a copy of the aggregate's stream. Unknown aggregates yield an empty stream.
func (es *EventStore) ReadEvents(ctx context.Context, aggregateType string, aggregateIdentifier string) (
	commandbus.EventMessages,
	error,
) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	es.mu.RLock()
	defer es.mu.RUnlock()

	return slices.Clone(es.streams[streamKey{aggregateType, aggregateIdentifier}]), nil
}

// AppendEvents appends the events of one aggregate atomically.
func (es *EventStore) AppendEvents(ctx context.Context, aggregateType string, events commandbus.EventMessages) error {
	if len(events) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	key := streamKey{aggregateType, events[0].AggregateIdentifier}

	es.mu.Lock()
	defer es.mu.Unlock()

	stream := es.streams[key]
	expected := uint(len(stream)) + 1

	for i, event := range events {
		if event.AggregateIdentifier != key.aggregateID {
			return eventstore.ErrMixedAggregateStreams
		}

		if event.SequenceNumber != expected+uint(i) {
			es.debug("concurrency conflict detected",
				"aggregate_type", aggregateType,
				"aggregate_id", key.aggregateID,
				"expected_sequence", expected+uint(i),
				"sequence", event.SequenceNumber)

			return eventstore.ErrConcurrencyConflict
		}
	}

	es.streams[key] = append(stream, events...)

	es.debug("events appended",
		"aggregate_type", aggregateType,
		"aggregate_id", key.aggregateID,
		"event_count", len(events))

	return nil
}

// StreamCount returns the number of non-empty streams.
func (es *EventStore) StreamCount() int {
	es.mu.RLock()
	defer es.mu.RUnlock()

	return len(es.streams)
}

func (es *EventStore) debug(msg string, args ...any) {
	if es.logger != nil {
		es.logger.Debug(msg, args...)
	}
}
