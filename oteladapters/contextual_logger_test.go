package oteladapters_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"

	"github.com/AntonStoeckl/pipelined-commandbus-go/oteladapters"
)

type recordingLogger struct {
	embedded.Logger

	mu      sync.Mutex
	records []log.Record
}

func (l *recordingLogger) Emit(_ context.Context, record log.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, record)
}

func (l *recordingLogger) Enabled(context.Context, log.EnabledParameters) bool {
	return true
}

func attributesOf(record log.Record) map[string]log.Value {
	attrs := make(map[string]log.Value)
	record.WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})

	return attrs
}

func Test_OTelLogger_EmitsRecordsWithSeverityAndTypedAttributes(t *testing.T) {
	// setup
	recorder := &recordingLogger{}
	logger := oteladapters.NewOTelLogger(recorder)

	// act
	logger.InfoContext(t.Context(), "command cycle completed", "command_type", "Deposit", "sequence", int64(7), "duration_ms", 1.5)
	logger.ErrorContext(t.Context(), "command cycle failed", "retry", false, "dangling")

	// assert
	require.Len(t, recorder.records, 2)

	info := recorder.records[0]
	assert.Equal(t, log.SeverityInfo, info.Severity())
	assert.Equal(t, "command cycle completed", info.Body().AsString())

	infoAttrs := attributesOf(info)
	assert.Equal(t, "Deposit", infoAttrs["command_type"].AsString())
	assert.Equal(t, int64(7), infoAttrs["sequence"].AsInt64())
	assert.InDelta(t, 1.5, infoAttrs["duration_ms"].AsFloat64(), 0)

	failure := recorder.records[1]
	assert.Equal(t, log.SeverityError, failure.Severity())
	assert.Len(t, attributesOf(failure), 1)
	assert.False(t, attributesOf(failure)["retry"].AsBool())
}

func Test_SlogBridgeLoggerWithHandler_WritesThroughTheHandler(t *testing.T) {
	// setup
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(handler)

	// act
	logger.Info("command bus started", "buffer_size", 1024)
	logger.DebugContext(t.Context(), "pipeline stage stopped", "stage", "invoke")

	// assert
	output := buf.String()
	assert.Contains(t, output, `"msg":"command bus started"`)
	assert.Contains(t, output, `"buffer_size":1024`)
	assert.Contains(t, output, `"stage":"invoke"`)
}

func Test_SlogBridgeLogger_OnTheGlobalProvider(t *testing.T) {
	// setup
	logger := oteladapters.NewSlogBridgeLogger("test")

	// act + assert
	assert.NotPanics(t, func() {
		logger.DebugContext(t.Context(), "debug message", "key", "value")
		logger.InfoContext(t.Context(), "info message", "key", "value")
		logger.WarnContext(t.Context(), "warn message", "key", "value")
		logger.ErrorContext(t.Context(), "error message", "key", "value")
		logger.Warn("plain warn message")
	})
}
