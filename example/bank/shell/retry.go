package shell

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = time.Millisecond
	defaultJitterFactor = 0.3

	// DispatchRetriesMetric counts dispatch attempts that found the buffer full and will be retried.
	DispatchRetriesMetric = "bank_dispatch_retries_total"

	// DispatchRetryDelayMetric records the backoff delay before a dispatch retry.
	DispatchRetryDelayMetric = "bank_dispatch_retry_delay_seconds"

	// DispatchMaxRetriesReachedMetric counts dispatches that failed after the last attempt.
	DispatchMaxRetriesReachedMetric = "bank_dispatch_max_retries_reached_total"
)

var (
	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// Dispatcher is the part of the command bus DispatchWithRetry needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, command commandbus.CommandMessage) error
}

// RetryMetadata describes how a dispatch went.
type RetryMetadata struct {
	Attempts      int
	TotalDelay    time.Duration
	LastErrorType string
}

type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector commandbus.MetricsCollector
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// DispatchWithRetry dispatches the command, backing off exponentially while the bus reports
// commandbus.ErrBufferFull. This only happens with the FailingClaim policy.
//
// Retry Schedule (default): 0 ms, 1 ms, 2 ms, 4 ms, 8 ms, 16 ms (with 30% jitter)
//
// All other errors, ErrBusStopped included, fail fast.
func DispatchWithRetry(
	ctx context.Context,
	dispatcher Dispatcher,
	command commandbus.CommandMessage,
	options ...RetryOption,
) (RetryMetadata, error) {

	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return RetryMetadata{}, err
		}
	}

	meta := RetryMetadata{LastErrorType: errorTypeOf(nil)}
	labels := map[string]string{"command_type": command.CommandType()}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // jitter needs no crypto
			backoffDelay := delay + time.Duration(jitter)

			recordDuration(ctx, config.metricsCollector, DispatchRetryDelayMetric, backoffDelay, withAttempt(labels, attempt))

			select {
			case <-time.After(backoffDelay):
				meta.TotalDelay += backoffDelay
			case <-ctx.Done():
				meta.LastErrorType = errorTypeOf(ctx.Err())
				return meta, ctx.Err()
			}
		}

		meta.Attempts++

		lastErr = dispatcher.Dispatch(ctx, command)
		meta.LastErrorType = errorTypeOf(lastErr)

		if lastErr == nil {
			return meta, nil
		}

		if !errors.Is(lastErr, commandbus.ErrBufferFull) {
			return meta, lastErr
		}

		if attempt < config.maxAttempts-1 {
			incrementCounter(ctx, config.metricsCollector, DispatchRetriesMetric, withAttempt(labels, attempt+1))
		}
	}

	incrementCounter(ctx, config.metricsCollector, DispatchMaxRetriesReachedMetric, labels)

	return meta, lastErr
}

func withAttempt(labels map[string]string, attempt int) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}

	out["attempt_number"] = strconv.Itoa(attempt)

	return out
}

func recordDuration(
	ctx context.Context,
	collector commandbus.MetricsCollector,
	metric string,
	duration time.Duration,
	labels map[string]string,
) {

	if collector == nil {
		return
	}

	if contextual, ok := collector.(commandbus.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	collector.RecordDuration(metric, duration, labels)
}

func incrementCounter(ctx context.Context, collector commandbus.MetricsCollector, metric string, labels map[string]string) {
	if collector == nil {
		return
	}

	if contextual, ok := collector.(commandbus.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	collector.IncrementCounter(metric, labels)
}

// errorTypeOf extracts a string representation of the error type for metrics labeling.
func errorTypeOf(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, commandbus.ErrBufferFull):
		return "buffer_full"
	case errors.Is(err, commandbus.ErrBusStopped):
		return "bus_stopped"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	default:
		return "other"
	}
}

// WithMaxAttempts sets the maximum number of dispatch attempts.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter as a fraction of the backoff delay, between 0.0 and 1.0.
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithMetrics sets the metrics collector for retry instrumentation.
func WithMetrics(collector commandbus.MetricsCollector) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		config.metricsCollector = collector

		return nil
	}
}
