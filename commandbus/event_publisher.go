package commandbus

import (
	"errors"
	"runtime/debug"
	"strconv"
	"time"
)

// eventPublisher is the last pipeline stage: it stores and publishes the events of each unit of work
// and reports faulted cycles. It is the only stage with durable side effects.
type eventPublisher[A Aggregate] struct {
	eventStore    EventStore
	eventBus      EventBus
	aggregateType string
	faultSink     FaultSink
	pending       *pendingEvents
	claimed       func() int64
	observer      observer
	clock         func() time.Time
}

func (p *eventPublisher[A]) onEntry(entry *commandHandlingEntry[A], sequence int64, _ bool) {
	start := p.clock()
	stored := false

	defer entry.release()
	defer func() {
		p.pending.resolve(entry.aggregateIdentifier, sequence, stored, p.claimed())
		p.pending.prune(sequence)
	}()

	defer func() {
		if r := recover(); r != nil {
			entry.fail(StagePublish, errors.Join(
				ErrPublishingEventsFailed,
				&RecoveryError{PanicValue: r, StackTrace: string(debug.Stack())},
			))
		}

		p.finish(entry, sequence, start)
	}()

	if entry.isFaulted() {
		return
	}

	if p.pending.poisoned(entry.aggregateIdentifier, entry.dependsOn) {
		entry.fail(StagePublish, errors.Join(ErrPersistingEventsFailed, ErrPrecedingCycleFailed))
		return
	}

	uow := entry.unitOfWork

	if eventsToStore := uow.EventsToStore(); len(eventsToStore) > 0 {
		if err := p.eventStore.AppendEvents(entry.ctx, p.aggregateType, eventsToStore); err != nil {
			entry.fail(StagePublish, errors.Join(ErrPersistingEventsFailed, err))
			return
		}

		stored = true

		p.observer.recordValue(entry.ctx, metricEventsPerCycle, float64(len(eventsToStore)), map[string]string{
			labelAggregateType: p.aggregateType,
		})
	}

	if p.eventBus == nil {
		return
	}

	for _, event := range uow.EventsToPublish() {
		if err := p.eventBus.Publish(entry.ctx, event); err != nil {
			entry.fail(StagePublish, errors.Join(ErrPublishingEventsFailed, err))
			return
		}
	}
}

// finish reports the outcome of the cycle: fault sink, metrics, logs and the cycle span.
func (p *eventPublisher[A]) finish(entry *commandHandlingEntry[A], sequence int64, start time.Time) {
	now := p.clock()
	commandType := entry.command.CommandType()

	p.observer.recordDuration(entry.ctx, metricStageDuration, now.Sub(start), map[string]string{
		labelStage:       string(StagePublish),
		labelCommandType: commandType,
	})

	if entry.isFaulted() {
		fault := entry.asFault(sequence)
		p.faultSink.CommandFailed(entry.ctx, fault)

		p.observer.incrementCounter(entry.ctx, metricFaultsTotal, map[string]string{
			labelStage:       string(fault.Stage),
			labelCommandType: commandType,
		})
		p.observer.recordDuration(entry.ctx, metricCycleDuration, now.Sub(entry.dispatchedAt), map[string]string{
			labelCommandType: commandType,
			labelStatus:      statusError,
		})
		p.observer.finishSpan(entry.span, statusError, map[string]string{
			spanAttrStage:     string(fault.Stage),
			spanAttrErrorType: fault.Err.Error(),
		})

		return
	}

	eventCount := len(entry.unitOfWork.EventsToStore())

	p.observer.recordDuration(entry.ctx, metricCycleDuration, now.Sub(entry.dispatchedAt), map[string]string{
		labelCommandType: commandType,
		labelStatus:      statusSuccess,
	})
	p.observer.logDebug(
		entry.ctx,
		logMsgCycleCompleted,
		logAttrSequence, sequence,
		logAttrCommandType, commandType,
		logAttrAggregateID, entry.aggregateIdentifier,
		logAttrEventCount, eventCount,
		logAttrDurationMS, toMilliseconds(now.Sub(entry.dispatchedAt)),
	)
	p.observer.finishSpan(entry.span, statusSuccess, map[string]string{
		spanAttrEventCount: strconv.Itoa(eventCount),
	})
}
