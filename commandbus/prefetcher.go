package commandbus

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"
)

// commandHandlerPreFetcher is the first pipeline stage. It resolves the handler, runs the interceptors
// and loads the target aggregate, so the I/O of loading overlaps with the invocation and publication
// of earlier sequences.
type commandHandlerPreFetcher[A Aggregate] struct {
	eventStore       EventStore
	aggregateFactory AggregateFactory[A]
	aggregateType    string
	registry         *HandlerRegistry[A]
	interceptors     []CommandInterceptor
	observer         observer
	clock            func() time.Time
}

func (p *commandHandlerPreFetcher[A]) onEntry(entry *commandHandlingEntry[A], sequence int64, _ bool) {
	start := p.clock()

	entry.ctx, entry.span = p.observer.startSpan(entry.ctx, spanNameCycle, map[string]string{
		spanAttrCommandType: entry.command.CommandType(),
		spanAttrAggregateID: entry.aggregateIdentifier,
		spanAttrSequence:    strconv.FormatInt(sequence, 10),
	})

	defer func() {
		if r := recover(); r != nil {
			entry.fail(StagePrefetch, errors.Join(
				ErrLoadingAggregateFailed,
				&RecoveryError{PanicValue: r, StackTrace: string(debug.Stack())},
			))
		}

		p.observer.recordDuration(entry.ctx, metricStageDuration, p.clock().Sub(start), map[string]string{
			labelStage:       string(StagePrefetch),
			labelCommandType: entry.command.CommandType(),
		})
	}()

	handler, ok := p.registry.Lookup(entry.command.CommandType())
	if !ok {
		entry.fail(StagePrefetch, errors.Join(
			ErrNoHandlerForCommand,
			fmt.Errorf("command type %q", entry.command.CommandType()),
		))

		return
	}

	if err := p.intercept(entry); err != nil {
		entry.fail(StagePrefetch, err)
		return
	}

	aggregateIdentifier, ok := entry.command.TargetAggregateIdentifier()
	if !ok {
		entry.fail(StagePrefetch, ErrMissingTargetAggregate)
		return
	}

	entry.aggregateIdentifier = aggregateIdentifier

	history, err := p.eventStore.ReadEvents(entry.ctx, p.aggregateType, aggregateIdentifier)
	if err != nil {
		entry.fail(StagePrefetch, errors.Join(ErrLoadingAggregateFailed, err))
		return
	}

	aggregate, err := p.aggregateFactory.CreateAggregate(aggregateIdentifier, history)
	if err != nil {
		entry.fail(StagePrefetch, errors.Join(ErrLoadingAggregateFailed, err))
		return
	}

	entry.handler = handler
	entry.preloadedAggregate = aggregate

	if len(history) > 0 {
		entry.lastSequenceNumber = history[len(history)-1].SequenceNumber
	}
}

// intercept runs the interceptor chain in order, each one sees the command returned by its predecessor.
func (p *commandHandlerPreFetcher[A]) intercept(entry *commandHandlingEntry[A]) error {
	command := entry.command

	for _, interceptor := range p.interceptors {
		intercepted, err := interceptor.Intercept(entry.ctx, command)
		if err != nil {
			return errors.Join(ErrCommandVetoed, err)
		}

		command = intercepted
	}

	entry.command = command

	return nil
}
