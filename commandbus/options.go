package commandbus

import (
	"time"
)

// Configuration holds everything an Option can change. Its zero value is never used directly,
// NewCommandBus starts from the defaults and applies the options in order.
type Configuration struct {
	bufferSize       int
	claimPolicy      ClaimPolicy
	waitStrategy     WaitStrategy
	executor         Executor
	interceptors     []CommandInterceptor
	faultSink        FaultSink
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
	clock            func() time.Time
}

func defaultConfiguration() Configuration {
	return Configuration{
		bufferSize:   DefaultBufferSize,
		claimPolicy:  BlockingClaim,
		waitStrategy: BlockingWait(),
		clock:        time.Now,
	}
}

// Option defines a functional option for configuring the CommandBus.
type Option func(*Configuration) error

// WithBufferSize sets the number of work slots. It must be a power of two.
func WithBufferSize(size int) Option {
	return func(c *Configuration) error {
		if !isPowerOfTwo(size) {
			return ErrInvalidBufferSize
		}

		c.bufferSize = size

		return nil
	}
}

// WithClaimPolicy sets what Dispatch does when all work slots are in use.
func WithClaimPolicy(policy ClaimPolicy) Option {
	return func(c *Configuration) error {
		if policy != BlockingClaim && policy != FailingClaim {
			return ErrUnknownClaimPolicy
		}

		c.claimPolicy = policy

		return nil
	}
}

// WithWaitStrategy sets how stages and blocked producers wait for sequences.
func WithWaitStrategy(strategy WaitStrategy) Option {
	return func(c *Configuration) error {
		if strategy == nil {
			return ErrNilWaitStrategy
		}

		c.waitStrategy = strategy

		return nil
	}
}

// WithExecutor runs the three stage goroutines on an externally managed executor.
// The CommandBus never shuts down an executor it did not create.
func WithExecutor(executor Executor) Option {
	return func(c *Configuration) error {
		if executor == nil {
			return ErrNilExecutor
		}

		c.executor = executor

		return nil
	}
}

// WithInterceptors appends interceptors to the chain run during prefetch, in the given order.
func WithInterceptors(interceptors ...CommandInterceptor) Option {
	return func(c *Configuration) error {
		for _, interceptor := range interceptors {
			if interceptor == nil {
				return ErrNilInterceptor
			}
		}

		c.interceptors = append(c.interceptors, interceptors...)

		return nil
	}
}

// WithFaultSink sets the receiver of faulted command cycles.
// Without it, faults are logged with the contextual logger (or slog.Default()) and dropped.
func WithFaultSink(sink FaultSink) Option {
	return func(c *Configuration) error {
		if sink == nil {
			return ErrNilFaultSink
		}

		c.faultSink = sink

		return nil
	}
}

// WithLogger sets the logger for the CommandBus.
//
// Debug level: completed cycles and stage shutdown
// Info level: start and stop of the bus
// Error level: panics that escaped a stage.
func WithLogger(logger Logger) Option {
	return func(c *Configuration) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the CommandBus.
// It receives the same messages as the Logger, with the cycle context for trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(c *Configuration) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the CommandBus.
// It receives dispatch counts, cycle and stage durations, fault counts and the remaining buffer capacity.
func WithMetrics(collector MetricsCollector) Option {
	return func(c *Configuration) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the CommandBus.
// One span is started per command cycle in prefetch and finished after publication.
func WithTracing(collector TracingCollector) Option {
	return func(c *Configuration) error {
		c.tracingCollector = collector
		return nil
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Configuration) error {
		if clock != nil {
			c.clock = clock
		}

		return nil
	}
}
