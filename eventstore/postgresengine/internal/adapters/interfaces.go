package adapters

import "context"

// DBAdapter defines the interface for database operations needed by the event store.
type DBAdapter interface {
	// Query runs a read. Adapters with a replica serve reads from it when the context asks for
	// eventual consistency.
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)

	// IsUniqueViolation reports whether err is the driver's unique constraint violation.
	IsUniqueViolation(err error) bool
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
