package commandbus

import (
	"reflect"
	"sync"
)

// HandlerRegistry maps command types to handlers.
// It is safe for concurrent use: subscriptions may change while commands are in flight,
// a change is effective for every command whose prefetch looks up the registry afterward.
type HandlerRegistry[A Aggregate] struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler[A]
}

// NewHandlerRegistry creates an empty HandlerRegistry.
func NewHandlerRegistry[A Aggregate]() *HandlerRegistry[A] {
	return &HandlerRegistry[A]{
		handlers: make(map[string]CommandHandler[A]),
	}
}

// Subscribe registers the handler for the command type, replacing any previous registration.
func (r *HandlerRegistry[A]) Subscribe(commandType string, handler CommandHandler[A]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[commandType] = handler
}

// Unsubscribe removes the registration only if the given handler is the one currently registered.
// It reports whether a registration was removed.
//
// Handlers of function type are compared by their code pointer.
func (r *HandlerRegistry[A]) Unsubscribe(commandType string, handler CommandHandler[A]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.handlers[commandType]
	if !ok || !sameHandler(current, handler) {
		return false
	}

	delete(r.handlers, commandType)

	return true
}

// Lookup returns the handler registered for the command type.
func (r *HandlerRegistry[A]) Lookup(commandType string) (CommandHandler[A], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[commandType]

	return handler, ok
}

// sameHandler compares handler identity without panicking on uncomparable dynamic types.
func sameHandler(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return !va.IsValid() && !vb.IsValid()
	}

	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Func, reflect.Map, reflect.Slice, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	default:
		if va.Comparable() && vb.Comparable() {
			return va.Equal(vb)
		}

		return false
	}
}
