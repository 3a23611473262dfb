// Package memorybus provides an in-process commandbus.EventBus.
//
// Listeners are called synchronously from the publication stage, in subscription order, so every
// listener observes events in the global processing order of the command bus.
package memorybus

import (
	"context"
	"errors"
	"sync"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = errors.New("event bus is closed")

// Listener receives published events. A returned error fails the publication of the event.
type Listener func(ctx context.Context, event commandbus.EventMessage) error

type subscription struct {
	id         uint64
	eventTypes map[string]struct{}
	listener   Listener
}

func (s subscription) wants(eventType string) bool {
	if len(s.eventTypes) == 0 {
		return true
	}

	_, ok := s.eventTypes[eventType]

	return ok
}

// EventBus fans events out to its listeners. It is safe for concurrent use.
type EventBus struct {
	mu            sync.RWMutex
	subscriptions []subscription
	nextID        uint64
	closed        bool
}

// NewEventBus creates an EventBus without listeners.
func NewEventBus() *EventBus {
	return &EventBus{}
}

var _ commandbus.EventBus = (*EventBus)(nil)

// Subscribe registers a listener for the given event types, or for all events when none are given.
// The returned function removes the listener again.
func (b *EventBus) Subscribe(listener Listener, eventTypes ...string) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, listener: listener}

	if len(eventTypes) > 0 {
		sub.eventTypes = make(map[string]struct{}, len(eventTypes))
		for _, eventType := range eventTypes {
			sub.eventTypes[eventType] = struct{}{}
		}
	}

	b.subscriptions = append(b.subscriptions, sub)

	return func() { b.remove(sub.id) }
}

func (b *EventBus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscriptions {
		if sub.id == id {
			b.subscriptions = append(b.subscriptions[:i:i], b.subscriptions[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to all interested listeners.
// All listeners are called even if one fails, their errors are joined.
func (b *EventBus) Publish(ctx context.Context, event commandbus.EventMessage) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}

	subscriptions := b.subscriptions
	b.mu.RUnlock()

	var errs []error

	for _, sub := range subscriptions {
		if !sub.wants(event.EventType()) {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := sub.listener(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Close rejects further publications and drops all listeners.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.subscriptions = nil

	return nil
}
