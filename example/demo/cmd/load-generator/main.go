package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/config"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventbus/memorybus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventbus/redisbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore/memoryengine"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore/postgresengine"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/core"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/shell"
	"github.com/AntonStoeckl/pipelined-commandbus-go/oteladapters"
)

const (
	defaultRate     = 200
	defaultAccounts = 100
	serviceName     = "bank-load-generator"
)

type Config struct {
	Rate           int
	Accounts       int
	Store          string
	Adapter        string
	Bus            string
	WithdrawWeight int
}

// closer collects shutdown work in reverse order of setup.
type closer []func()

func (c closer) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func main() {
	cfg := parseFlags()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("load generator failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cleanup closer
	defer func() { cleanup.closeAll() }()

	obsConfig, err := config.LoadObservabilityConfig()
	if err != nil {
		return err
	}

	providers, err := obsConfig.SetupObservability(ctx)
	if err != nil {
		return fmt.Errorf("setting up observability: %w", err)
	}

	cleanup = append(cleanup, func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = providers.Shutdown(shutdownCtx)
	})

	observability := newObservability(obsConfig.Enabled(), logger)
	serializer := shell.NewSerializer()

	eventStore, err := buildEventStore(ctx, cfg, serializer, observability, &cleanup)
	if err != nil {
		return err
	}

	stats := &Stats{}

	eventBus, err := buildEventBus(ctx, cfg, serializer, stats, logger, &cleanup)
	if err != nil {
		return err
	}

	busConfig, err := config.LoadCommandBusConfig()
	if err != nil {
		return err
	}

	busOptions, err := busConfig.Options()
	if err != nil {
		return err
	}

	busOptions = append(busOptions,
		commandbus.WithInterceptors(shell.ActorInterceptor(serviceName)),
		commandbus.WithFaultSink(stats.faultSink(commandbus.NewLoggingFaultSink(observability.contextualLogger))),
		commandbus.WithLogger(logger),
		commandbus.WithContextualLogger(observability.contextualLogger),
	)

	if observability.metrics != nil {
		busOptions = append(busOptions,
			commandbus.WithMetrics(observability.metrics),
			commandbus.WithTracing(observability.tracing),
		)
	}

	bus, err := shell.NewAccountCommandBus(eventStore, eventBus, busOptions...)
	if err != nil {
		return fmt.Errorf("creating the command bus: %w", err)
	}

	loadGen := NewLoadGenerator(bus, cfg, stats, observability.metrics, logger)

	logger.Info("load generator started",
		"rate", cfg.Rate,
		"accounts", cfg.Accounts,
		"store", cfg.Store,
		"bus", cfg.Bus,
		"buffer_size", busConfig.BufferSize,
		"claim_policy", busConfig.ClaimPolicy,
		"wait_strategy", busConfig.WaitStrategy,
		"observability", obsConfig.Enabled())

	runErr := loadGen.Start(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return errors.Join(runErr, loadGen.Stop(shutdownCtx), bus.Stop(shutdownCtx))
}

func parseFlags() Config {
	var (
		rate           = flag.Int("rate", defaultRate, "Commands per second")
		accounts       = flag.Int("accounts", defaultAccounts, "Number of accounts to open and use")
		store          = flag.String("store", "memory", "Event store: memory or postgres")
		adapter        = flag.String("adapter", "pgx", "Postgres adapter: pgx, sql or sqlx")
		bus            = flag.String("bus", "memory", "Event bus: memory, redis or none")
		withdrawWeight = flag.Int("withdraw-weight", 40, "Percentage of withdrawals among deposits and withdrawals")
	)

	flag.Parse()

	if *rate <= 0 || *accounts <= 0 || *withdrawWeight < 0 || *withdrawWeight > 100 {
		fmt.Fprintln(os.Stderr, "rate and accounts must be positive, withdraw-weight must be within [0, 100]")
		os.Exit(2)
	}

	return Config{
		Rate:           *rate,
		Accounts:       *accounts,
		Store:          strings.ToLower(*store),
		Adapter:        strings.ToLower(*adapter),
		Bus:            strings.ToLower(*bus),
		WithdrawWeight: *withdrawWeight,
	}
}

// Observability holds the adapters shared by the event store and the command bus.
type Observability struct {
	contextualLogger commandbus.ContextualLogger
	metrics          commandbus.MetricsCollector
	tracing          commandbus.TracingCollector
}

func newObservability(enabled bool, logger *slog.Logger) Observability {
	if !enabled {
		return Observability{contextualLogger: logger}
	}

	return Observability{
		contextualLogger: oteladapters.NewSlogBridgeLogger(serviceName),
		metrics:          oteladapters.NewMetricsCollector(otel.Meter(serviceName)),
		tracing:          oteladapters.NewTracingCollector(otel.Tracer(serviceName)),
	}
}

func (o Observability) postgresOptions(tableName string) []postgresengine.Option {
	options := []postgresengine.Option{
		postgresengine.WithTableName(tableName),
		postgresengine.WithContextualLogger(o.contextualLogger),
	}

	if o.metrics != nil {
		options = append(options, postgresengine.WithMetrics(o.metrics), postgresengine.WithTracing(o.tracing))
	}

	return options
}

func buildEventStore(
	ctx context.Context,
	cfg Config,
	serializer *eventstore.Serializer,
	observability Observability,
	cleanup *closer,
) (commandbus.EventStore, error) {

	if cfg.Store == "memory" {
		return memoryengine.NewEventStore(), nil
	}

	if cfg.Store != "postgres" {
		return nil, fmt.Errorf("unknown event store %q", cfg.Store)
	}

	pgConfig, err := config.LoadPostgresConfig()
	if err != nil {
		return nil, err
	}

	options := observability.postgresOptions(pgConfig.TableName)

	var es *postgresengine.EventStore

	switch cfg.Adapter {
	case "pgx":
		poolConfig, poolErr := pgConfig.PGXPoolConfig()
		if poolErr != nil {
			return nil, poolErr
		}

		pool, poolErr := pgxpool.NewWithConfig(ctx, poolConfig)
		if poolErr != nil {
			return nil, fmt.Errorf("creating the pgx pool: %w", poolErr)
		}

		*cleanup = append(*cleanup, pool.Close)
		es, err = postgresengine.NewEventStoreFromPGXPool(pool, serializer, options...)

	case "sql":
		db, dbErr := pgConfig.OpenSQLDB(ctx)
		if dbErr != nil {
			return nil, dbErr
		}

		*cleanup = append(*cleanup, func() { _ = db.Close() })
		es, err = postgresengine.NewEventStoreFromSQLDB(db, serializer, options...)

	case "sqlx":
		db, dbErr := pgConfig.OpenSQLX(ctx)
		if dbErr != nil {
			return nil, dbErr
		}

		*cleanup = append(*cleanup, func() { _ = db.Close() })
		es, err = postgresengine.NewEventStoreFromSQLX(db, serializer, options...)

	default:
		return nil, fmt.Errorf("unknown postgres adapter %q", cfg.Adapter)
	}

	if err != nil {
		return nil, err
	}

	if err = es.CreateSchema(ctx); err != nil {
		return nil, err
	}

	return es, nil
}

func buildEventBus(
	ctx context.Context,
	cfg Config,
	serializer *eventstore.Serializer,
	stats *Stats,
	logger *slog.Logger,
	cleanup *closer,
) (commandbus.EventBus, error) {

	switch cfg.Bus {
	case "none":
		return nil, nil

	case "memory":
		bus := memorybus.NewEventBus()
		bus.Subscribe(stats.countPublished)

		return bus, nil

	case "redis":
		redisConfig, err := config.LoadRedisConfig()
		if err != nil {
			return nil, err
		}

		client := redis.NewClient(redisConfig.ClientOptions())
		*cleanup = append(*cleanup, func() { _ = client.Close() })

		if err = client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}

		bus, err := redisbus.NewEventBus(
			client,
			serializer,
			core.AccountAggregateType,
			redisbus.WithChannelPrefix(redisConfig.ChannelPrefix),
			redisbus.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}

		if err = bus.Listen(ctx, stats.countPublished); err != nil {
			return nil, err
		}

		return bus, nil

	default:
		return nil, fmt.Errorf("unknown event bus %q", cfg.Bus)
	}
}
