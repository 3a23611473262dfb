// Package main implements a load generator for the pipelined command bus, dispatching a configurable
// rate of bank account commands against the memory or PostgreSQL event store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/features/depositmoney"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/features/openaccount"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/features/withdrawmoney"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/shell"
)

const statsInterval = 10 * time.Second

// Stats counts what happened to the dispatched commands. It is safe for concurrent use.
type Stats struct {
	dispatched atomic.Int64
	rejected   atomic.Int64
	faulted    atomic.Int64
	retries    atomic.Int64
	published  atomic.Int64
	failures   atomic.Int64
}

func (s *Stats) countPublished(_ context.Context, event commandbus.EventMessage) error {
	s.published.Add(1)

	if strings.HasSuffix(event.EventType(), "Failed") {
		s.failures.Add(1)
	}

	return nil
}

func (s *Stats) faultSink(next commandbus.FaultSink) commandbus.FaultSink {
	return commandbus.FaultSinkFunc(func(ctx context.Context, fault commandbus.Fault) {
		s.faulted.Add(1)
		next.CommandFailed(ctx, fault)
	})
}

// LoadGenerator dispatches account commands at a fixed rate.
type LoadGenerator struct {
	bus     shell.Dispatcher
	config  Config
	stats   *Stats
	metrics commandbus.MetricsCollector
	logger  *slog.Logger

	stopOnce  sync.Once
	stopChan  chan struct{}
	wg        sync.WaitGroup
	startTime time.Time
}

// NewLoadGenerator creates a new LoadGenerator.
func NewLoadGenerator(
	bus shell.Dispatcher,
	config Config,
	stats *Stats,
	metrics commandbus.MetricsCollector,
	logger *slog.Logger,
) *LoadGenerator {

	return &LoadGenerator{
		bus:      bus,
		config:   config,
		stats:    stats,
		metrics:  metrics,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start opens all accounts and then dispatches deposits and withdrawals until ctx ends or Stop is called.
func (lg *LoadGenerator) Start(ctx context.Context) error {
	lg.startTime = time.Now()

	for i := 1; i <= lg.config.Accounts; i++ {
		command := openaccount.BuildCommand(accountID(i), fmt.Sprintf("owner-%d", i))
		if err := lg.dispatch(ctx, command); err != nil {
			return fmt.Errorf("opening accounts: %w", err)
		}
	}

	interval := time.Second / time.Duration(lg.config.Rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lg.logger.Info("dispatching", "interval", interval, "goroutines", runtime.NumGoroutine())

	lg.wg.Add(1)
	go lg.statsReporter(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-lg.stopChan:
			return nil

		case <-ticker.C:
			lg.wg.Add(1)
			go func() {
				defer lg.wg.Done()
				lg.executeScenario(ctx)
			}()
		}
	}
}

// Stop waits for in-flight dispatches and logs the final statistics.
func (lg *LoadGenerator) Stop(ctx context.Context) error {
	lg.stopOnce.Do(func() { close(lg.stopChan) })

	done := make(chan struct{})
	go func() {
		lg.wg.Wait()
		close(done)
	}()

	defer lg.logStats("final stats")

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout exceeded: %w", ctx.Err())
	}
}

func (lg *LoadGenerator) executeScenario(ctx context.Context) {
	id := accountID(rand.Intn(lg.config.Accounts) + 1) //nolint:gosec // load generation needs no crypto
	amount := int64(rand.Intn(100) + 1)                 //nolint:gosec // load generation needs no crypto

	var command shell.AccountCommand = depositmoney.BuildCommand(id, amount)
	if rand.Intn(100) < lg.config.WithdrawWeight { //nolint:gosec // load generation needs no crypto
		command = withdrawmoney.BuildCommand(id, amount)
	}

	if err := lg.dispatch(ctx, command); err != nil && ctx.Err() == nil {
		lg.stats.rejected.Add(1)
		lg.logger.Warn("dispatch failed", "command_type", command.CommandType(), "error", err)
	}
}

func (lg *LoadGenerator) dispatch(ctx context.Context, command shell.AccountCommand) error {
	var options []shell.RetryOption
	if lg.metrics != nil {
		options = append(options, shell.WithMetrics(lg.metrics))
	}

	meta, err := shell.DispatchWithRetry(ctx, lg.bus, shell.NewCommandMessage(command), options...)
	lg.stats.retries.Add(int64(meta.Attempts - 1))

	if err == nil {
		lg.stats.dispatched.Add(1)
	}

	return err
}

func (lg *LoadGenerator) statsReporter(ctx context.Context) {
	defer lg.wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-lg.stopChan:
			return
		case <-ticker.C:
			lg.logStats("stats")
		}
	}
}

func (lg *LoadGenerator) logStats(msg string) {
	duration := time.Since(lg.startTime)
	if duration <= 0 {
		return
	}

	dispatched := lg.stats.dispatched.Load()

	lg.logger.Info(msg,
		"duration", duration.Truncate(time.Second),
		"dispatched", dispatched,
		"per_second", fmt.Sprintf("%.1f", float64(dispatched)/duration.Seconds()),
		"dispatch_errors", lg.stats.rejected.Load(),
		"retries", lg.stats.retries.Load(),
		"faults", lg.stats.faulted.Load(),
		"published", lg.stats.published.Load(),
		"business_failures", lg.stats.failures.Load(),
		"goroutines", runtime.NumGoroutine())
}

func accountID(n int) string {
	return fmt.Sprintf("account-%06d", n)
}
