package commandbus

import (
	"context"
)

// EventStore persists and reads the event streams of aggregates.
type EventStore interface {
	// ReadEvents returns the stream of the given aggregate ordered by sequence number.
	// An unknown aggregate yields an empty stream, not an error.
	ReadEvents(ctx context.Context, aggregateType string, aggregateIdentifier string) (EventMessages, error)

	// AppendEvents durably appends the events in the given order.
	// The slice is only valid for the duration of the call.
	AppendEvents(ctx context.Context, aggregateType string, events EventMessages) error
}

// EventBus publishes events to subscribers. A nil EventBus is valid: publishing is skipped.
type EventBus interface {
	Publish(ctx context.Context, event EventMessage) error
}

// CommandHandler executes a command against the preloaded aggregate.
// New events are recorded via the UnitOfWork, which also applies them to the aggregate.
type CommandHandler[A Aggregate] interface {
	Handle(ctx context.Context, command CommandMessage, aggregate A, uow *UnitOfWork) error
}

// CommandHandlerFunc adapts a function to the CommandHandler interface.
type CommandHandlerFunc[A Aggregate] func(ctx context.Context, command CommandMessage, aggregate A, uow *UnitOfWork) error

// Handle calls f.
func (f CommandHandlerFunc[A]) Handle(ctx context.Context, command CommandMessage, aggregate A, uow *UnitOfWork) error {
	return f(ctx, command, aggregate, uow)
}

// CommandInterceptor inspects a command before its aggregate is loaded.
// It may return a modified command, or an error to veto it.
type CommandInterceptor interface {
	Intercept(ctx context.Context, command CommandMessage) (CommandMessage, error)
}

// CommandInterceptorFunc adapts a function to the CommandInterceptor interface.
type CommandInterceptorFunc func(ctx context.Context, command CommandMessage) (CommandMessage, error)

// Intercept calls f.
func (f CommandInterceptorFunc) Intercept(ctx context.Context, command CommandMessage) (CommandMessage, error) {
	return f(ctx, command)
}
