package commandbus

import (
	"errors"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// residentAggregate is the aggregate preloaded for the slot currently being invoked.
type residentAggregate[A Aggregate] struct {
	identifier string
	aggregate  A
}

// commandHandlerInvoker is the second pipeline stage. It is the only goroutine executing handlers,
// which is what makes aggregate mutation safe without per-aggregate locks.
type commandHandlerInvoker[A Aggregate] struct {
	resident atomic.Pointer[residentAggregate[A]]
	pending  *pendingEvents
	observer observer
	clock    func() time.Time
}

func (i *commandHandlerInvoker[A]) onEntry(entry *commandHandlingEntry[A], sequence int64, _ bool) {
	if entry.isFaulted() {
		return
	}

	start := i.clock()

	missing, dependsOn := i.pending.tail(entry.aggregateIdentifier, entry.lastSequenceNumber)
	for _, event := range missing {
		entry.preloadedAggregate.Apply(event.Payload)
		entry.lastSequenceNumber = event.SequenceNumber
	}

	entry.dependsOn = dependsOn

	entry.unitOfWork.bind(entry.preloadedAggregate, entry.lastSequenceNumber, entry.command)

	i.resident.Store(&residentAggregate[A]{
		identifier: entry.aggregateIdentifier,
		aggregate:  entry.preloadedAggregate,
	})
	defer i.resident.Store(nil)

	if err := i.invoke(entry); err != nil {
		entry.unitOfWork.discard()
		entry.fail(StageInvoke, err)
	} else {
		i.pending.record(entry.aggregateIdentifier, sequence, entry.unitOfWork.EventsToStore(), dependsOn)
	}

	i.observer.recordDuration(entry.ctx, metricStageDuration, i.clock().Sub(start), map[string]string{
		labelStage:       string(StageInvoke),
		labelCommandType: entry.command.CommandType(),
	})
}

func (i *commandHandlerInvoker[A]) invoke(entry *commandHandlingEntry[A]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(
				ErrHandlerFailed,
				ErrHandlerPanicked,
				&RecoveryError{PanicValue: r, StackTrace: string(debug.Stack())},
			)
		}
	}()

	if handleErr := entry.handler.Handle(entry.ctx, entry.command, entry.preloadedAggregate, entry.unitOfWork); handleErr != nil {
		return errors.Join(ErrHandlerFailed, handleErr)
	}

	return nil
}

// preloadedAggregate returns the aggregate of the slot being invoked if it has the given identifier.
func (i *commandHandlerInvoker[A]) preloadedAggregate(aggregateIdentifier string) (A, error) {
	resident := i.resident.Load()
	if resident == nil || resident.identifier != aggregateIdentifier {
		var empty A
		return empty, ErrUnsupportedOperation
	}

	return resident.aggregate, nil
}
