package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/pipelined-commandbus-go/config"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore/postgresengine"
)

// Engine type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// Wrapper abstracts over the different connection types.
type Wrapper interface {
	EventStore() *postgresengine.EventStore
	TableName() string
	Exec(ctx context.Context, statement string) error
}

type wrapper struct {
	es        *postgresengine.EventStore
	tableName string
	exec      func(ctx context.Context, statement string) error
}

func (w *wrapper) EventStore() *postgresengine.EventStore {
	return w.es
}

func (w *wrapper) TableName() string {
	return w.tableName
}

func (w *wrapper) Exec(ctx context.Context, statement string) error {
	return w.exec(ctx, statement)
}

// New creates an event store on a fresh table with the driver chosen by ADAPTER_TYPE.
func New(t testing.TB, serializer *eventstore.Serializer, options ...postgresengine.Option) Wrapper {
	t.Helper()

	cfg, err := config.LoadPostgresConfig()
	require.NoError(t, err, "error loading postgres config")

	if cfg.DSN == "" {
		t.Skip("COMMANDBUS_POSTGRES_DSN is not set")
	}

	tableName := "events_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	options = append(options, postgresengine.WithTableName(tableName))

	w := create(t, cfg, serializer, tableName, options)
	require.NoError(t, w.es.CreateSchema(t.Context()), "error creating schema")

	t.Cleanup(func() {
		_ = w.exec(context.Background(), "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(tableName)) // best effort
	})

	return w
}

func create(
	t testing.TB,
	cfg config.PostgresConfig,
	serializer *eventstore.Serializer,
	tableName string,
	options []postgresengine.Option,
) *wrapper {

	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch engineTypeFromEnv {
	case typePGXPool, "":
		poolConfig, err := cfg.PGXPoolConfig()
		require.NoError(t, err, "error building pool config")

		pool, err := pgxpool.NewWithConfig(t.Context(), poolConfig)
		require.NoError(t, err, "error connecting to DB pool in test setup")
		t.Cleanup(pool.Close)

		es, err := postgresengine.NewEventStoreFromPGXPool(pool, serializer, options...)
		require.NoError(t, err, "error creating event store")

		return &wrapper{es: es, tableName: tableName, exec: func(ctx context.Context, statement string) error {
			_, execErr := pool.Exec(ctx, statement)
			return execErr
		}}

	case typeSQLDB:
		db, err := cfg.OpenSQLDB(t.Context())
		require.NoError(t, err, "error connecting to DB in test setup")
		t.Cleanup(func() { _ = db.Close() })

		es, err := postgresengine.NewEventStoreFromSQLDB(db, serializer, options...)
		require.NoError(t, err, "error creating event store")

		return &wrapper{es: es, tableName: tableName, exec: execFor(db)}

	case typeSQLXDB:
		db, err := cfg.OpenSQLX(t.Context())
		require.NoError(t, err, "error connecting to DB in test setup")
		t.Cleanup(func() { _ = db.Close() })

		es, err := postgresengine.NewEventStoreFromSQLX(db, serializer, options...)
		require.NoError(t, err, "error creating event store")

		return &wrapper{es: es, tableName: tableName, exec: execFor(db.DB)}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}
}

func execFor(db *sql.DB) func(ctx context.Context, statement string) error {
	return func(ctx context.Context, statement string) error {
		_, err := db.ExecContext(ctx, statement)
		return err
	}
}

