package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

const driverPostgres = "postgres"

// ErrEmptyPostgresDSN is returned when a connection is requested without a DSN.
var ErrEmptyPostgresDSN = errors.New("postgres dsn must not be empty")

// PostgresConfig holds connection settings for the PostgreSQL event store.
// ReplicaDSN is optional and only used for eventually consistent reads.
type PostgresConfig struct {
	DSN               string        `env:"COMMANDBUS_POSTGRES_DSN"`
	ReplicaDSN        string        `env:"COMMANDBUS_POSTGRES_REPLICA_DSN"`
	TableName         string        `env:"COMMANDBUS_POSTGRES_TABLE" envDefault:"events"`
	MaxConns          int32         `env:"COMMANDBUS_POSTGRES_MAX_CONNS" envDefault:"8"`
	MinConns          int32         `env:"COMMANDBUS_POSTGRES_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime   time.Duration `env:"COMMANDBUS_POSTGRES_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime   time.Duration `env:"COMMANDBUS_POSTGRES_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	HealthCheckPeriod time.Duration `env:"COMMANDBUS_POSTGRES_HEALTH_CHECK_PERIOD" envDefault:"1m"`
	ConnectTimeout    time.Duration `env:"COMMANDBUS_POSTGRES_CONNECT_TIMEOUT" envDefault:"5s"`
}

// LoadPostgresConfig parses PostgresConfig from the environment.
func LoadPostgresConfig() (PostgresConfig, error) {
	var cfg PostgresConfig
	if err := ParseEnv(&cfg); err != nil {
		return PostgresConfig{}, err
	}

	return cfg, nil
}

// HasReplica reports whether a replica DSN is configured.
func (c PostgresConfig) HasReplica() bool {
	return c.ReplicaDSN != ""
}

// PGXPoolConfig creates a pgxpool.Config for the primary database.
func (c PostgresConfig) PGXPoolConfig() (*pgxpool.Config, error) {
	return c.pgxPoolConfig(c.DSN)
}

// PGXPoolReplicaConfig creates a pgxpool.Config for the replica database.
func (c PostgresConfig) PGXPoolReplicaConfig() (*pgxpool.Config, error) {
	return c.pgxPoolConfig(c.ReplicaDSN)
}

func (c PostgresConfig) pgxPoolConfig(dsn string) (*pgxpool.Config, error) {
	if dsn == "" {
		return nil, ErrEmptyPostgresDSN
	}

	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	dbConfig.MaxConns = c.MaxConns
	dbConfig.MinConns = c.MinConns
	dbConfig.MaxConnLifetime = c.MaxConnLifetime
	dbConfig.MaxConnIdleTime = c.MaxConnIdleTime
	dbConfig.HealthCheckPeriod = c.HealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = c.ConnectTimeout

	return dbConfig, nil
}

// OpenSQLDB opens and pings a *sql.DB for the primary database with the lib/pq driver.
func (c PostgresConfig) OpenSQLDB(ctx context.Context) (*sql.DB, error) {
	if c.DSN == "" {
		return nil, ErrEmptyPostgresDSN
	}

	db, err := sql.Open(driverPostgres, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	c.configurePool(db)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", pingErr)
	}

	return db, nil
}

// OpenSQLX opens and pings a *sqlx.DB for the primary database with the lib/pq driver.
func (c PostgresConfig) OpenSQLX(ctx context.Context) (*sqlx.DB, error) {
	if c.DSN == "" {
		return nil, ErrEmptyPostgresDSN
	}

	db, err := sqlx.ConnectContext(ctx, driverPostgres, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	c.configurePool(db.DB)

	return db, nil
}

func (c PostgresConfig) configurePool(db *sql.DB) {
	db.SetMaxOpenConns(int(c.MaxConns))
	db.SetMaxIdleConns(int(c.MinConns))
	db.SetConnMaxLifetime(c.MaxConnLifetime)
	db.SetConnMaxIdleTime(c.MaxConnIdleTime)
}
