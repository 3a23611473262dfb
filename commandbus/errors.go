package commandbus

import "errors"

// Construction and configuration errors.
var (
	ErrNilAggregateFactory = errors.New("aggregate factory must not be nil")
	ErrNilEventStore       = errors.New("event store must not be nil")
	ErrNilExecutor         = errors.New("executor must not be nil")
	ErrNilInterceptor      = errors.New("interceptor must not be nil")
	ErrNilFaultSink        = errors.New("fault sink must not be nil")
	ErrNilWaitStrategy     = errors.New("wait strategy must not be nil")
	ErrInvalidBufferSize   = errors.New("buffer size must be a positive power of two")
	ErrUnknownClaimPolicy  = errors.New("unknown claim policy")
	ErrUnknownWaitStrategy = errors.New("unknown wait strategy")
)

// Dispatch and lifecycle errors.
var (
	// ErrBufferFull is returned by Dispatch with the FailingClaim policy when producers have outrun
	// the slowest stage by a full buffer.
	ErrBufferFull = errors.New("ring buffer has no free slot")

	// ErrBusStopped is returned by Dispatch once Stop has been called.
	ErrBusStopped = errors.New("command bus is stopped")

	// ErrStopTimedOut is returned by Stop when its context ends before all published commands drained.
	ErrStopTimedOut = errors.New("stopping the command bus timed out before draining")

	// ErrAlerted is returned by wait strategies when the pipeline is halted.
	ErrAlerted = errors.New("sequence barrier alerted")
)

// Unsupported capability errors, surfaced synchronously to the caller.
var (
	// ErrUnsupportedCapability is returned by DispatchWithCallback: per-command result delivery is not implemented.
	ErrUnsupportedCapability = errors.New("this command bus does not support callbacks")

	// ErrUnsupportedOperation is returned by Load for any aggregate other than the preloaded one.
	ErrUnsupportedOperation = errors.New("loading another aggregate than the preloaded one is not supported")
)

// Per-cycle faults, reported to the FaultSink.
var (
	ErrMissingTargetAggregate = errors.New("command metadata has no target aggregate identifier")
	ErrNoHandlerForCommand    = errors.New("no handler subscribed for command type")
	ErrCommandVetoed          = errors.New("command vetoed by interceptor")
	ErrLoadingAggregateFailed = errors.New("loading aggregate failed")
	ErrHandlerFailed          = errors.New("command handler failed")
	ErrHandlerPanicked        = errors.New("command handler panicked")
	ErrPersistingEventsFailed = errors.New("persisting events failed")
	ErrPublishingEventsFailed = errors.New("publishing events failed")

	// ErrPrecedingCycleFailed faults a cycle that replayed the events of an earlier cycle on the same
	// aggregate which then could not be stored.
	ErrPrecedingCycleFailed = errors.New("an earlier cycle on the same aggregate failed to store the events this one replayed")
)
