package commandbus

import (
	"context"
	"runtime/debug"
	"sync/atomic"
)

// entryHandler is the work of one pipeline stage.
type entryHandler[E any] interface {
	onEntry(entry E, sequence int64, endOfBatch bool)
}

// batchProcessor runs one pipeline stage: it owns a cursor into the ring buffer and processes
// every sequence its barrier reports as available, strictly in order.
type batchProcessor[E any] struct {
	stage        Stage
	ring         *ringBuffer[E]
	barrier      func(next int64) int64
	cursor       *sequence
	handler      entryHandler[E]
	waitStrategy WaitStrategy
	alerted      *atomic.Bool
	observer     observer
}

func newBatchProcessor[E any](
	stage Stage,
	ring *ringBuffer[E],
	barrier func(next int64) int64,
	handler entryHandler[E],
	waitStrategy WaitStrategy,
	alerted *atomic.Bool,
	observer observer,
) *batchProcessor[E] {

	return &batchProcessor[E]{
		stage:        stage,
		ring:         ring,
		barrier:      barrier,
		cursor:       newSequence(),
		handler:      handler,
		waitStrategy: waitStrategy,
		alerted:      alerted,
		observer:     observer,
	}
}

// dependsOn returns a barrier that follows the cursor of the given upstream processor.
func dependsOn[E any](upstream *batchProcessor[E]) func(int64) int64 {
	return func(int64) int64 {
		return upstream.cursor.get()
	}
}

// run processes sequences until the processor is alerted and nothing is left to do.
func (p *batchProcessor[E]) run() {
	next := p.cursor.get() + 1

	for {
		available, err := p.waitStrategy.WaitFor(
			next,
			func() int64 { return p.barrier(next) },
			p.alerted.Load,
		)
		if err != nil {
			p.observer.logDebug(context.Background(), logMsgStageStopped, logAttrStage, string(p.stage), logAttrSequence, next-1)
			return
		}

		for ; next <= available; next++ {
			p.process(p.ring.get(next), next, next == available)
			p.cursor.set(next)
			p.waitStrategy.SignalAllWhenBlocking()
		}
	}
}

// process shields the processor loop from panics the stage itself did not handle.
// A stage goroutine that died would stall every later sequence.
func (p *batchProcessor[E]) process(entry E, sequence int64, endOfBatch bool) {
	defer func() {
		if r := recover(); r != nil {
			p.observer.logError(
				context.Background(),
				logMsgPanicRecovered,
				&RecoveryError{PanicValue: r, StackTrace: string(debug.Stack())},
				logAttrStage, string(p.stage),
				logAttrSequence, sequence,
			)
		}
	}()

	p.handler.onEntry(entry, sequence, endOfBatch)
}
