package postgresengine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore"
)

const (
	metricReadDuration         = "eventstore_read_duration_seconds"
	metricAppendDuration       = "eventstore_append_duration_seconds"
	metricEventsRead           = "eventstore_events_read_total"
	metricEventsAppended       = "eventstore_events_appended_total"
	metricConcurrencyConflicts = "eventstore_concurrency_conflicts_total"
	metricDatabaseErrors       = "eventstore_database_errors_total"

	spanNameRead   = "eventstore.read_events"
	spanNameAppend = "eventstore.append_events"

	spanAttrOperation     = "operation"
	spanAttrAggregateType = "aggregate_type"
	spanAttrAggregateID   = "aggregate_id"
	spanAttrEventCount    = "event_count"
	spanAttrEventType     = "event_type"
	spanAttrExpectedSeq   = "expected_sequence"
	spanAttrDurationMS    = "duration_ms"
	spanAttrErrorType     = "error_type"

	operationRead   = "read"
	operationAppend = "append"

	statusSuccess = "success"
	statusError   = "error"

	errorTypeBuildQuery          = "build_query"
	errorTypeDatabaseQuery       = "database_query"
	errorTypeDatabaseExec        = "database_exec"
	errorTypeRowScan             = "row_scan"
	errorTypeSerialization       = "serialization"
	errorTypeConcurrencyConflict = "concurrency_conflict"
)

// logQueryWithDuration logs SQL statements with execution time at debug level if a logger is configured.
func (es *EventStore) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	args := []any{logAttrDurationMS, es.toMilliseconds(duration), logAttrQuery, sqlQuery}

	if es.logger != nil {
		es.logger.Debug(logMsgSQLExecuted+action, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (es *EventStore) logOperation(ctx context.Context, action string, args ...any) {
	if es.logger != nil {
		es.logger.Info(logMsgOperation+action, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical issues if a logger is configured.
func (es *EventStore) logWarn(ctx context.Context, message string, args ...any) {
	if es.logger != nil {
		es.logger.Warn(message, args...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.WarnContext(ctx, message, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (es *EventStore) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if es.logger != nil {
		es.logger.Error(message, allArgs...)
	}

	if es.contextualLogger != nil {
		es.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (es *EventStore) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (es *EventStore) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if es.metricsCollector == nil {
		return
	}

	if contextual, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	es.metricsCollector.RecordDuration(metric, duration, labels)
}

func (es *EventStore) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if es.metricsCollector == nil {
		return
	}

	if contextual, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
		return
	}

	es.metricsCollector.RecordValue(metric, value, labels)
}

func (es *EventStore) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if es.metricsCollector == nil {
		return
	}

	if contextual, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	es.metricsCollector.IncrementCounter(metric, labels)
}

// === Metrics Observer Pattern ===
// These observers simplify the metrics collection by encapsulating recording complexity.

// metricsObserver collects the metrics of one read or append operation.
type metricsObserver struct {
	es             *EventStore
	ctx            context.Context
	operation      string
	aggregateType  string
	durationMetric string
	countMetric    string
}

// startQueryMetrics creates a new metrics observer for read operations.
func (es *EventStore) startQueryMetrics(ctx context.Context, aggregateType string) *metricsObserver {
	return &metricsObserver{
		es:             es,
		ctx:            ctx,
		operation:      operationRead,
		aggregateType:  aggregateType,
		durationMetric: metricReadDuration,
		countMetric:    metricEventsRead,
	}
}

// startAppendMetrics creates a new metrics observer for append operations.
func (es *EventStore) startAppendMetrics(ctx context.Context, aggregateType string) *metricsObserver {
	return &metricsObserver{
		es:             es,
		ctx:            ctx,
		operation:      operationAppend,
		aggregateType:  aggregateType,
		durationMetric: metricAppendDuration,
		countMetric:    metricEventsAppended,
	}
}

func (mo *metricsObserver) labels(status string) map[string]string {
	return map[string]string{
		spanAttrOperation:     mo.operation,
		spanAttrAggregateType: mo.aggregateType,
		"status":              status,
	}
}

// recordSuccess records duration and event count of a successful operation.
func (mo *metricsObserver) recordSuccess(eventCount int, duration time.Duration) {
	mo.es.recordDuration(mo.ctx, mo.durationMetric, duration, mo.labels(statusSuccess))
	mo.es.recordValue(mo.ctx, mo.countMetric, float64(eventCount), mo.labels(statusSuccess))
}

// recordError records a failed operation, with its duration when the database was reached.
func (mo *metricsObserver) recordError(errorType string, duration time.Duration) {
	labels := mo.labels(statusError)
	labels[spanAttrErrorType] = errorType

	if duration > 0 {
		mo.es.recordDuration(mo.ctx, mo.durationMetric, duration, mo.labels(statusError))
	}

	mo.es.incrementCounter(mo.ctx, metricDatabaseErrors, labels)
}

// recordConflict records a concurrency conflict of an append operation.
func (mo *metricsObserver) recordConflict(duration time.Duration) {
	mo.es.recordDuration(mo.ctx, mo.durationMetric, duration, mo.labels(errorTypeConcurrencyConflict))
	mo.es.incrementCounter(mo.ctx, metricConcurrencyConflicts, map[string]string{
		spanAttrOperation:     mo.operation,
		spanAttrAggregateType: mo.aggregateType,
		"conflict_type":       "concurrency",
	})
}

// === Tracing Observer Pattern ===
// These observers simplify tracing span management by encapsulating lifecycle complexity.

// tracingObserver encapsulates the span lifecycle of one read or append operation.
type tracingObserver struct {
	es   *EventStore
	span eventstore.SpanContext
}

// startQueryTracing starts a span for a read operation.
func (es *EventStore) startQueryTracing(
	ctx context.Context,
	aggregateType string,
	aggregateIdentifier string,
) (*tracingObserver, context.Context) {

	return es.startTracing(ctx, spanNameRead, map[string]string{
		spanAttrOperation:     operationRead,
		spanAttrAggregateType: aggregateType,
		spanAttrAggregateID:   aggregateIdentifier,
	})
}

// startAppendTracing starts a span for an append operation.
func (es *EventStore) startAppendTracing(
	ctx context.Context,
	aggregateType string,
	events commandbus.EventMessages,
) (*tracingObserver, context.Context) {

	first := events[0]

	return es.startTracing(ctx, spanNameAppend, map[string]string{
		spanAttrOperation:     operationAppend,
		spanAttrAggregateType: aggregateType,
		spanAttrAggregateID:   first.AggregateIdentifier,
		spanAttrEventCount:    strconv.Itoa(len(events)),
		spanAttrEventType:     first.Payload.EventType(),
		spanAttrExpectedSeq:   strconv.FormatUint(uint64(first.SequenceNumber-1), 10),
	})
}

func (es *EventStore) startTracing(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (*tracingObserver, context.Context) {

	if es.tracingCollector == nil {
		return &tracingObserver{es: es}, ctx
	}

	newCtx, span := es.tracingCollector.StartSpan(ctx, name, attrs)

	return &tracingObserver{es: es, span: span}, newCtx
}

// finishSuccess completes the span of a successful operation.
func (to *tracingObserver) finishSuccess(eventCount int, duration time.Duration) {
	if to.span == nil {
		return
	}

	attrs := map[string]string{
		spanAttrEventCount: strconv.Itoa(eventCount),
		spanAttrDurationMS: to.formatDuration(duration),
	}

	to.span.SetStatus(statusSuccess)
	to.es.tracingCollector.FinishSpan(to.span, statusSuccess, attrs)
}

// finishError completes the span with error details.
func (to *tracingObserver) finishError(errorType string, duration time.Duration) {
	if to.span == nil {
		return
	}

	attrs := map[string]string{spanAttrErrorType: errorType}
	if duration > 0 {
		attrs[spanAttrDurationMS] = to.formatDuration(duration)
	}

	to.span.SetStatus(statusError)
	to.es.tracingCollector.FinishSpan(to.span, statusError, attrs)
}

func (to *tracingObserver) formatDuration(duration time.Duration) string {
	return fmt.Sprintf("%.2f", to.es.toMilliseconds(duration))
}
