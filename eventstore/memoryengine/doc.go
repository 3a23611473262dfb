// Package memoryengine provides an in-process implementation of commandbus.EventStore.
//
// It applies the same stream rules as the PostgreSQL engine: an append must continue the stream
// exactly at its current length plus one, otherwise it fails with eventstore.ErrConcurrencyConflict.
// Nothing is persisted, which makes it a fit for tests, demos and single process tools.
package memoryengine
