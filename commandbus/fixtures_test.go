package commandbus_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

const (
	counterType         = "Counter"
	incrementType       = "Increment"
	counterIncremented  = "CounterIncremented"
	counterAnnouncement = "CounterAnnounced"
)

var (
	errForced      = errors.New("forced error")
	errSequenceGap = errors.New("sequence numbers do not continue the stream")
)

// counter is a minimal event-sourced aggregate.
type counter struct {
	id      string
	value   int
	history []int
}

func newCounter(id string) *counter {
	return &counter{id: id}
}

func (c *counter) AggregateIdentifier() string {
	return c.id
}

func (c *counter) Apply(event commandbus.DomainEvent) {
	if e, ok := event.(incremented); ok {
		c.value += e.By
		c.history = append(c.history, c.value)
	}
}

type increment struct {
	By int
}

func (increment) CommandType() string { return incrementType }

type incremented struct {
	By int
}

func (incremented) EventType() string { return counterIncremented }

type announced struct {
	Value int
}

func (announced) EventType() string { return counterAnnouncement }

func counterFactory() commandbus.AggregateFactory[*counter] {
	return commandbus.NewEventSourcingFactory(counterType, newCounter)
}

func incrementHandler() commandbus.CommandHandlerFunc[*counter] {
	return func(_ context.Context, command commandbus.CommandMessage, _ *counter, uow *commandbus.UnitOfWork) error {
		cmd, ok := command.Payload().(increment)
		if !ok {
			return errors.New("unexpected payload")
		}

		uow.Apply(incremented{By: cmd.By})

		return nil
	}
}

func incrementCommand(aggregateID string, by int) commandbus.CommandMessage {
	return commandbus.BuildCommandMessage(increment{By: by}, commandbus.TargetAggregate(aggregateID))
}

// fakeEventStore keeps streams in memory and records every append call.
// Like the real stores it rejects appends that do not continue the stream.
type fakeEventStore struct {
	mu           sync.Mutex
	streams      map[string]commandbus.EventMessages
	reads        map[string]int
	appendCalls  int
	readCalls    atomic.Int64
	failAppend   error
	failRead     error
	beforeAppend func(events commandbus.EventMessages) error
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		streams: make(map[string]commandbus.EventMessages),
		reads:   make(map[string]int),
	}
}

func (s *fakeEventStore) ReadEvents(
	_ context.Context,
	aggregateType string,
	aggregateIdentifier string,
) (commandbus.EventMessages, error) {

	s.readCalls.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRead != nil {
		return nil, s.failRead
	}

	stream := s.streams[aggregateType+"/"+aggregateIdentifier]
	s.reads[aggregateIdentifier]++

	return append(commandbus.EventMessages(nil), stream...), nil
}

func (s *fakeEventStore) AppendEvents(_ context.Context, aggregateType string, events commandbus.EventMessages) error {
	if s.beforeAppend != nil {
		if err := s.beforeAppend(events); err != nil {
			s.mu.Lock()
			s.appendCalls++
			s.mu.Unlock()

			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendCalls++

	if s.failAppend != nil {
		return s.failAppend
	}

	key := aggregateType + "/" + events[0].AggregateIdentifier
	stream := s.streams[key]

	for i, event := range events {
		if event.SequenceNumber != uint(len(stream)+i+1) {
			return errSequenceGap
		}
	}

	s.streams[key] = append(stream, events...)

	return nil
}

func (s *fakeEventStore) readsOf(aggregateIdentifier string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reads[aggregateIdentifier]
}

func (s *fakeEventStore) stream(aggregateIdentifier string) commandbus.EventMessages {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append(commandbus.EventMessages(nil), s.streams[counterType+"/"+aggregateIdentifier]...)
}

func (s *fakeEventStore) appends() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendCalls
}

// fakeEventBus records published events and can fail on a given event type.
type fakeEventBus struct {
	mu          sync.Mutex
	published   commandbus.EventMessages
	failOnEvent string
}

func (b *fakeEventBus) Publish(_ context.Context, event commandbus.EventMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failOnEvent != "" && event.EventType() == b.failOnEvent {
		return errForced
	}

	b.published = append(b.published, event)

	return nil
}

func (b *fakeEventBus) events() commandbus.EventMessages {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append(commandbus.EventMessages(nil), b.published...)
}

// faultRecorder is a FaultSink collecting every fault.
type faultRecorder struct {
	mu     sync.Mutex
	faults []commandbus.Fault
}

func (r *faultRecorder) CommandFailed(_ context.Context, fault commandbus.Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.faults = append(r.faults, fault)
}

func (r *faultRecorder) all() []commandbus.Fault {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]commandbus.Fault(nil), r.faults...)
}

func newCounterBus(
	t *testing.T,
	store *fakeEventStore,
	bus commandbus.EventBus,
	options ...commandbus.Option,
) *commandbus.CommandBus[*counter] {

	t.Helper()

	commandBus, err := commandbus.NewCommandBus[*counter](counterFactory(), store, bus, options...)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = commandBus.Stop(ctx)
	})

	return commandBus
}

// waitUntil polls the condition until it holds or a second has passed.
func waitUntil(condition func() bool) bool {
	deadline := time.Now().Add(time.Second)

	for time.Now().Before(deadline) {
		if condition() {
			return true
		}

		time.Sleep(time.Millisecond)
	}

	return condition()
}

func stopBus(t *testing.T, commandBus *commandbus.CommandBus[*counter]) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, commandBus.Stop(ctx))
}
