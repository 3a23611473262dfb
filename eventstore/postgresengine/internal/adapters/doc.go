// Package adapters lets the PostgreSQL event store run on pgxpool, database/sql with lib/pq, or sqlx.
//
// The store only needs reads of one aggregate stream, conditional inserts and the driver's unique
// violation code. DBAdapter reduces each driver to exactly that, and routes reads to the replica
// when the context asks for eventual consistency.
package adapters
