// Package postgresengine provides a PostgreSQL implementation of commandbus.EventStore.
//
// Every aggregate owns one stream inside a single events table, identified by aggregate type and
// aggregate identifier. A unique constraint on (aggregate_type, aggregate_id, sequence_number)
// together with an expected-sequence guard in the insert statement turns concurrent writers into
// eventstore.ErrConcurrencyConflict.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX), the latter two via lib/pq
//   - Atomic multi-event appends in one statement
//   - Optional read replica for eventually consistent reads
//   - Configurable table name, logging, metrics and tracing
//
// Usage examples:
//
//	pool, _ := pgxpool.New(ctx, dsn)
//	serializer := eventstore.NewSerializer(bank.AccountOpened{}, bank.Deposited{}, bank.Withdrawn{})
//
//	store, _ := postgresengine.NewEventStoreFromPGXPool(
//		pool,
//		serializer,
//		postgresengine.WithTableName("bank_events"),
//		postgresengine.WithLogger(slog.Default()),
//	)
//
//	if err := store.CreateSchema(ctx); err != nil {
//		// handle error
//	}
//
//	events, _ := store.ReadEvents(ctx, "Account", "A1")
package postgresengine
