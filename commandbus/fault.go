package commandbus

import (
	"context"
	"fmt"
	"log/slog"
)

// Stage names one of the three pipeline stages.
type Stage string

const (
	StagePrefetch Stage = "prefetch"
	StageInvoke   Stage = "invoke"
	StagePublish  Stage = "publish"
)

// Fault describes a command cycle that did not complete.
// Err is a joined error, match it with errors.Is against the Err* sentinels.
type Fault struct {
	Sequence            int64
	Stage               Stage
	Command             CommandMessage
	AggregateIdentifier string
	Err                 error
}

// FaultSink receives every faulted command cycle, from the publication stage goroutine.
// Implementations must not block for long, they hold up all later sequences.
type FaultSink interface {
	CommandFailed(ctx context.Context, fault Fault)
}

// FaultSinkFunc adapts a function to the FaultSink interface.
type FaultSinkFunc func(ctx context.Context, fault Fault)

// CommandFailed calls f.
func (f FaultSinkFunc) CommandFailed(ctx context.Context, fault Fault) {
	f(ctx, fault)
}

// LoggingFaultSink is the default FaultSink: it logs the fault at error level and drops it.
// Faulted commands are not retried.
type LoggingFaultSink struct {
	logger ContextualLogger
}

// NewLoggingFaultSink creates a LoggingFaultSink. A nil logger falls back to slog.Default().
func NewLoggingFaultSink(logger ContextualLogger) LoggingFaultSink {
	if logger == nil {
		logger = slog.Default()
	}

	return LoggingFaultSink{logger: logger}
}

// CommandFailed logs the fault.
func (s LoggingFaultSink) CommandFailed(ctx context.Context, fault Fault) {
	s.logger.ErrorContext(
		ctx,
		logMsgCycleFailed,
		logAttrStage, string(fault.Stage),
		logAttrSequence, fault.Sequence,
		logAttrCommandType, fault.Command.CommandType(),
		logAttrAggregateID, fault.AggregateIdentifier,
		logAttrError, fault.Err.Error(),
	)
}

// RecoveryError wraps a panic value recovered inside a pipeline stage with the stack trace.
type RecoveryError struct {
	PanicValue any
	StackTrace string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.PanicValue)
}
