// Package eventstore provides the storage side of the command bus: a DTO for stored events,
// the serializer turning commandbus.EventMessage into it and back, and shared error definitions.
//
// Events are stored in per-aggregate streams. A stream is identified by the aggregate type and the
// aggregate identifier, its events are ordered by a gapless sequence number starting at 1.
// Appending an event whose sequence number is already taken fails with ErrConcurrencyConflict.
//
// Engines:
//   - postgresengine: PostgreSQL via pgx, database/sql (lib/pq) or sqlx
//   - memoryengine: in-process, for tests and demos
//
// Common usage pattern:
//
//	serializer := eventstore.NewSerializer(bank.AccountOpened{}, bank.Deposited{}, bank.Withdrawn{})
//	store, err := postgresengine.NewEventStoreFromPGXPool(pool, serializer)
//	if err != nil {
//		// handle error
//	}
//
//	bus, err := commandbus.NewCommandBus[*bank.Account](bank.NewAccountFactory(), store, nil)
package eventstore
