package commandbus

import (
	"context"
	"errors"
	"time"
)

// commandHandlingEntry is one work slot: the state of one command's journey through the pipeline.
//
// Entries are allocated once per ring position. Between reset and the end of publication an entry
// belongs to exactly one sequence, and its fields are handed from stage to stage by the cursors,
// never touched by two stages at the same time.
type commandHandlingEntry[A Aggregate] struct {
	ctx                 context.Context
	command             CommandMessage
	aggregateIdentifier string
	handler             CommandHandler[A]
	preloadedAggregate  A
	lastSequenceNumber  uint
	dependsOn           []int64
	unitOfWork          *UnitOfWork
	span                SpanContext
	dispatchedAt        time.Time
	faultStage          Stage
	fault               error
}

func newCommandHandlingEntry[A Aggregate](clock func() time.Time) *commandHandlingEntry[A] {
	return &commandHandlingEntry[A]{
		ctx:        context.Background(),
		unitOfWork: newUnitOfWork(clock),
	}
}

// reset overwrites all fields of the previous cycle.
func (e *commandHandlingEntry[A]) reset(ctx context.Context, command CommandMessage, aggregateIdentifier string, now time.Time) {
	var empty A

	e.ctx = ctx
	e.command = command
	e.aggregateIdentifier = aggregateIdentifier
	e.handler = nil
	e.preloadedAggregate = empty
	e.lastSequenceNumber = 0
	e.dependsOn = nil
	e.span = nil
	e.dispatchedAt = now
	e.faultStage = ""
	e.fault = nil
	e.unitOfWork.reset()
}

// release drops the references held after the cycle ended, the slot may wait long for its next claim.
func (e *commandHandlingEntry[A]) release() {
	var empty A

	e.ctx = context.Background()
	e.handler = nil
	e.preloadedAggregate = empty
	e.span = nil
	e.unitOfWork.reset()
}

// fail marks the cycle as faulted. The stage of the first fault is kept.
func (e *commandHandlingEntry[A]) fail(stage Stage, err error) {
	if e.fault != nil {
		e.fault = errors.Join(e.fault, err)
		return
	}

	e.faultStage = stage
	e.fault = err
}

func (e *commandHandlingEntry[A]) isFaulted() bool {
	return e.fault != nil
}

func (e *commandHandlingEntry[A]) asFault(sequence int64) Fault {
	return Fault{
		Sequence:            sequence,
		Stage:               e.faultStage,
		Command:             e.command,
		AggregateIdentifier: e.aggregateIdentifier,
		Err:                 e.fault,
	}
}
