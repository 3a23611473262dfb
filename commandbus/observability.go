package commandbus

import (
	"context"
	"time"
)

// Logger interface for operational logging, warnings and error reporting.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
// This interface follows the same dependency-free pattern as MetricsCollector and TracingCollector,
// allowing users to integrate with any logging backend that supports context-based correlation.
// *slog.Logger satisfies it.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting CommandBus throughput and latency metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods for better tracing integration.
// The CommandBus uses the context-aware methods when available.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information from command cycles.
// One span covers one command from prefetch to publication.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

const (
	metricDispatchTotal      = "commandbus_dispatch_total"
	metricCycleDuration      = "commandbus_cycle_duration_seconds"
	metricStageDuration      = "commandbus_stage_duration_seconds"
	metricFaultsTotal        = "commandbus_faults_total"
	metricEventsPerCycle     = "commandbus_events_per_cycle"
	metricRemainingCapacity  = "commandbus_buffer_remaining_capacity"
	spanNameCycle            = "commandbus.cycle"
	spanAttrCommandType      = "command_type"
	spanAttrAggregateID      = "aggregate_id"
	spanAttrSequence         = "sequence"
	spanAttrEventCount       = "event_count"
	spanAttrStage            = "stage"
	spanAttrErrorType        = "error_type"
	labelCommandType         = "command_type"
	labelStage               = "stage"
	labelStatus              = "status"
	labelAggregateType       = "aggregate_type"
	statusSuccess            = "success"
	statusError              = "error"
	statusRejected           = "rejected"
	logMsgCommandBusStarted  = "command bus started"
	logMsgCommandBusStopped  = "command bus stopped"
	logMsgStageStopped       = "pipeline stage stopped"
	logMsgCycleCompleted     = "command cycle completed"
	logMsgCycleFailed        = "command cycle failed"
	logMsgPanicRecovered     = "panic recovered in pipeline stage"
	logMsgDispatchRejected   = "dispatch rejected"
	logAttrError             = "error"
	logAttrStage             = "stage"
	logAttrSequence          = "sequence"
	logAttrCommandType       = "command_type"
	logAttrAggregateID       = "aggregate_id"
	logAttrEventCount        = "event_count"
	logAttrDurationMS        = "duration_ms"
	logAttrBufferSize        = "buffer_size"
	logAttrOwnsExecutor      = "owns_executor"
	logAttrAggregateType     = "aggregate_type"
)

// observer bundles the optional logging, metrics and tracing collaborators, each may be nil.
type observer struct {
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// logInfo logs at info level to every configured logger.
func (o observer) logInfo(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

// logDebug logs at debug level to every configured logger.
func (o observer) logDebug(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (o observer) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if o.logger != nil {
		o.logger.Error(msg, allArgs...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

// incrementCounter increments a counter, using the context-aware method if available.
func (o observer) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if o.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	o.metricsCollector.IncrementCounter(metric, labels)
}

// recordDuration records a duration, using the context-aware method if available.
func (o observer) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if o.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	o.metricsCollector.RecordDuration(metric, duration, labels)
}

// recordValue records a value, using the context-aware method if available.
func (o observer) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if o.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	o.metricsCollector.RecordValue(metric, value, labels)
}

// startSpan starts a tracing span if the tracing collector is configured.
func (o observer) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext) {
	if o.tracingCollector == nil {
		return ctx, nil
	}

	return o.tracingCollector.StartSpan(ctx, name, attrs)
}

// finishSpan finishes a tracing span if the tracing collector is configured.
func (o observer) finishSpan(span SpanContext, status string, attrs map[string]string) {
	if o.tracingCollector != nil && span != nil {
		o.tracingCollector.FinishSpan(span, status, attrs)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
