package commandbus

import (
	"golang.org/x/sync/errgroup"
)

// Executor runs the long-lived stage tasks of a CommandBus. Each task must get its own goroutine,
// an executor that runs tasks one after the other would deadlock the pipeline.
type Executor interface {
	Execute(task func())
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(task func())

// Execute calls f.
func (f ExecutorFunc) Execute(task func()) {
	f(task)
}

// goroutineExecutor is the executor a CommandBus creates when none is configured.
// The bus owns it and shuts it down on Stop.
type goroutineExecutor struct {
	group errgroup.Group
}

func newGoroutineExecutor() *goroutineExecutor {
	return &goroutineExecutor{}
}

func (e *goroutineExecutor) Execute(task func()) {
	e.group.Go(func() error {
		task()
		return nil
	})
}

// shutdown waits for every task started by the executor to return.
func (e *goroutineExecutor) shutdown() error {
	return e.group.Wait()
}
