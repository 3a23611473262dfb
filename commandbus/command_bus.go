package commandbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// CommandBus dispatches commands through the three-stage pipeline. It is safe for concurrent use
// by any number of producers.
type CommandBus[A Aggregate] struct {
	aggregateType string
	ring          *ringBuffer[*commandHandlingEntry[A]]
	registry      *HandlerRegistry[A]
	invoker       *commandHandlerInvoker[A]
	processors    []*batchProcessor[*commandHandlingEntry[A]]
	waitStrategy  WaitStrategy
	executor      Executor
	ownedExecutor *goroutineExecutor
	observer      observer
	clock         func() time.Time

	lifecycle    sync.RWMutex
	stopped      bool
	alerted      atomic.Bool
	stages       sync.WaitGroup
	stagesDone   chan struct{}
	haltOnce     sync.Once
	shutdownOnce sync.Once
	shutdownErr  error
}

// NewCommandBus creates a CommandBus for aggregates of the factory's type and starts its stages.
// The event bus may be nil, then publication to an event bus is skipped.
func NewCommandBus[A Aggregate](
	aggregateFactory AggregateFactory[A],
	eventStore EventStore,
	eventBus EventBus,
	options ...Option,
) (*CommandBus[A], error) {

	if aggregateFactory == nil {
		return nil, ErrNilAggregateFactory
	}

	if eventStore == nil {
		return nil, ErrNilEventStore
	}

	config := defaultConfiguration()
	for _, option := range options {
		if err := option(&config); err != nil {
			return nil, err
		}
	}

	if config.faultSink == nil {
		config.faultSink = NewLoggingFaultSink(config.contextualLogger)
	}

	entries := make([]*commandHandlingEntry[A], config.bufferSize)
	for i := range entries {
		entries[i] = newCommandHandlingEntry[A](config.clock)
	}

	ring, err := newRingBuffer(entries, config.claimPolicy, config.waitStrategy)
	if err != nil {
		return nil, err
	}

	obs := observer{
		logger:           config.logger,
		contextualLogger: config.contextualLogger,
		metricsCollector: config.metricsCollector,
		tracingCollector: config.tracingCollector,
	}

	bus := &CommandBus[A]{
		aggregateType: aggregateFactory.TypeIdentifier(),
		ring:          ring,
		registry:      NewHandlerRegistry[A](),
		waitStrategy:  config.waitStrategy,
		executor:      config.executor,
		observer:      obs,
		clock:         config.clock,
		stagesDone:    make(chan struct{}),
	}

	if bus.executor == nil {
		bus.ownedExecutor = newGoroutineExecutor()
		bus.executor = bus.ownedExecutor
	}

	pending := newPendingEvents()
	bus.invoker = &commandHandlerInvoker[A]{pending: pending, observer: obs, clock: config.clock}

	prefetch := newBatchProcessor(
		StagePrefetch,
		ring,
		ring.highestPublishedFrom,
		&commandHandlerPreFetcher[A]{
			eventStore:       eventStore,
			aggregateFactory: aggregateFactory,
			aggregateType:    bus.aggregateType,
			registry:         bus.registry,
			interceptors:     config.interceptors,
			observer:         obs,
			clock:            config.clock,
		},
		config.waitStrategy,
		&bus.alerted,
		obs,
	)

	invoke := newBatchProcessor(StageInvoke, ring, dependsOn(prefetch), bus.invoker, config.waitStrategy, &bus.alerted, obs)

	publish := newBatchProcessor(
		StagePublish,
		ring,
		dependsOn(invoke),
		&eventPublisher[A]{
			eventStore:    eventStore,
			eventBus:      eventBus,
			aggregateType: bus.aggregateType,
			faultSink:     config.faultSink,
			pending:       pending,
			claimed:       ring.claimed,
			observer:      obs,
			clock:         config.clock,
		},
		config.waitStrategy,
		&bus.alerted,
		obs,
	)

	ring.setGatingSequence(publish.cursor)
	bus.processors = append(bus.processors, prefetch, invoke, publish)
	bus.start()

	return bus, nil
}

func (b *CommandBus[A]) start() {
	for _, processor := range b.processors {
		b.stages.Add(1)
		b.executor.Execute(func() {
			defer b.stages.Done()
			processor.run()
		})
	}

	go func() {
		b.stages.Wait()
		close(b.stagesDone)
	}()

	b.observer.logInfo(
		context.Background(),
		logMsgCommandBusStarted,
		logAttrAggregateType, b.aggregateType,
		logAttrBufferSize, b.ring.bufferSize(),
		logAttrOwnsExecutor, b.ownedExecutor != nil,
	)
}

// Dispatch claims a work slot for the command and publishes it to the pipeline.
// It returns as soon as the command is published, the outcome of the command cycle
// is reported to the FaultSink only when it faults.
//
// The context bounds the wait for a free slot under the blocking claim policy. The values of the
// context are handed to the pipeline, its cancellation is not.
func (b *CommandBus[A]) Dispatch(ctx context.Context, command CommandMessage) error {
	if err := ctx.Err(); err != nil {
		return b.rejected(ctx, command, err)
	}

	b.lifecycle.RLock()
	defer b.lifecycle.RUnlock()

	if b.stopped {
		return b.rejected(ctx, command, ErrBusStopped)
	}

	sequence, err := b.ring.next(ctx)
	if err != nil {
		return b.rejected(ctx, command, err)
	}

	aggregateIdentifier, _ := command.TargetAggregateIdentifier()
	b.ring.get(sequence).reset(context.WithoutCancel(ctx), command, aggregateIdentifier, b.clock())
	b.ring.publish(sequence)

	b.observer.incrementCounter(ctx, metricDispatchTotal, map[string]string{
		labelCommandType: command.CommandType(),
		labelStatus:      statusSuccess,
	})
	b.observer.recordValue(ctx, metricRemainingCapacity, float64(b.ring.remainingCapacity()), nil)

	return nil
}

func (b *CommandBus[A]) rejected(ctx context.Context, command CommandMessage, err error) error {
	b.observer.incrementCounter(ctx, metricDispatchTotal, map[string]string{
		labelCommandType: command.CommandType(),
		labelStatus:      statusRejected,
	})
	b.observer.logDebug(ctx, logMsgDispatchRejected, logAttrCommandType, command.CommandType(), logAttrError, err.Error())

	return err
}

// DispatchWithCallback is not supported: the pipeline reports results only through the FaultSink.
// It always returns ErrUnsupportedCapability.
func (b *CommandBus[A]) DispatchWithCallback(_ context.Context, _ CommandMessage, _ func(CommandMessage, error)) error {
	return ErrUnsupportedCapability
}

// Subscribe registers the handler for the command type, replacing any previous registration.
func (b *CommandBus[A]) Subscribe(commandType string, handler CommandHandler[A]) {
	b.registry.Subscribe(commandType, handler)
}

// Unsubscribe removes the handler for the command type if it is the registered one.
func (b *CommandBus[A]) Unsubscribe(commandType string, handler CommandHandler[A]) bool {
	return b.registry.Unsubscribe(commandType, handler)
}

// Load returns the aggregate the currently executing handler works on.
// It is meant to be called from handler code, any other identifier, or a call while no handler
// is executing, returns ErrUnsupportedOperation.
func (b *CommandBus[A]) Load(aggregateIdentifier string) (A, error) {
	return b.invoker.preloadedAggregate(aggregateIdentifier)
}

// RemainingCapacity returns the number of work slots that can be claimed without waiting.
func (b *CommandBus[A]) RemainingCapacity() int64 {
	return b.ring.remainingCapacity()
}

// Stop refuses new dispatches, waits until every published command went through all stages,
// then halts the stages. The executor is shut down only if the CommandBus created it.
//
// If ctx ends first, the stages are halted without waiting for the remaining commands and
// ErrStopTimedOut is returned, joined with the context error. Commands not yet published by then
// may be abandoned. Stop may be called again to wait for the stage goroutines to return.
func (b *CommandBus[A]) Stop(ctx context.Context) error {
	b.lifecycle.Lock()
	b.stopped = true
	b.lifecycle.Unlock()

	if !b.alerted.Load() {
		if err := b.drain(ctx); err != nil {
			b.halt()
			return errors.Join(ErrStopTimedOut, err)
		}

		b.halt()
	}

	select {
	case <-b.stagesDone:
	case <-ctx.Done():
		return errors.Join(ErrStopTimedOut, ctx.Err())
	}

	b.shutdownOnce.Do(func() {
		if b.ownedExecutor != nil {
			b.shutdownErr = b.ownedExecutor.shutdown()
		}

		b.observer.logInfo(ctx, logMsgCommandBusStopped, logAttrAggregateType, b.aggregateType)
	})

	return b.shutdownErr
}

// drain waits until the last stage passed the highest claimed sequence.
// All claimed sequences are published, Stop holds the lifecycle lock before reading the claim cursor.
func (b *CommandBus[A]) drain(ctx context.Context) error {
	last := b.processors[len(b.processors)-1]
	claimed := b.ring.claimed()

	stop := context.AfterFunc(ctx, b.waitStrategy.SignalAllWhenBlocking)
	defer stop()

	if _, err := b.waitStrategy.WaitFor(claimed, last.cursor.get, func() bool { return ctx.Err() != nil }); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		return err
	}

	return nil
}

func (b *CommandBus[A]) halt() {
	b.haltOnce.Do(func() {
		b.alerted.Store(true)
		b.waitStrategy.SignalAllWhenBlocking()
	})
}
