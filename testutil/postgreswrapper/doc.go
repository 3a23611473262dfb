// Package postgreswrapper creates PostgreSQL event stores for integration tests.
//
// The database comes from COMMANDBUS_POSTGRES_DSN, tests are skipped when it is not set.
// ADAPTER_TYPE selects the driver: "pgx.pool" (default), "sql.db" or "sqlx.db".
// Every wrapper works on its own freshly created table, which is dropped on test cleanup.
package postgreswrapper
