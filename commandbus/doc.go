// Package commandbus provides a pipelined command bus for event-sourced aggregates.
//
// Commands are claimed into a fixed-size ring buffer of reusable work slots and flow through
// three stages, each running on its own goroutine:
//
//   - prefetch: resolves the handler, runs interceptors and reconstructs the target aggregate
//     by replaying its event stream
//   - invoke: executes the handler against the preloaded aggregate, recording new events
//     into the slot's UnitOfWork
//   - publish: appends the recorded events to the EventStore and publishes them on the EventBus
//
// All stages consume the buffer in strict sequence order, so stage N+1 never sees sequence S
// before stage N has finished it. Because exactly one goroutine executes handlers, aggregate state
// is mutated without per-aggregate locks.
//
// Faults (routing failures, interceptor vetoes, handler errors or panics, persistence errors)
// stay local to their sequence and are reported to the configured FaultSink.
// The default sink logs and drops them.
//
// Common usage pattern:
//
//	bus, err := commandbus.NewCommandBus[*bank.Account](
//		bank.NewAccountFactory(),
//		store,
//		eventBus,
//		commandbus.WithBufferSize(1024),
//		commandbus.WithLogger(slog.Default()),
//	)
//	if err != nil {
//		// handle error
//	}
//	defer bus.Stop(context.Background())
//
//	bus.Subscribe(bank.DepositCommandType, bank.DepositHandler())
//
//	cmd := commandbus.BuildCommandMessage(bank.Deposit{Amount: 10}, commandbus.TargetAggregate("A1"))
//	err = bus.Dispatch(ctx, cmd)
package commandbus
