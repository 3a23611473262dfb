package oteladapters_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/pipelined-commandbus-go/oteladapters"
)

func newMetricsCollector(t *testing.T) (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &resourceMetrics))

	byName := make(map[string]metricdata.Metrics)
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			byName[m.Name] = m
		}
	}

	return byName
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// setup
	collector, reader := newMetricsCollector(t)

	// act
	collector.RecordDuration("commandbus_cycle_duration_seconds", 250*time.Millisecond, map[string]string{"status": "success"})
	collector.RecordDurationContext(t.Context(), "commandbus_cycle_duration_seconds", 750*time.Millisecond, map[string]string{"status": "success"})

	// assert
	metrics := collect(t, reader)
	histogram, ok := metrics["commandbus_cycle_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(2), histogram.DataPoints[0].Count)
	assert.InDelta(t, 1.0, histogram.DataPoints[0].Sum, 0.0001)
	assert.Equal(t, "s", metrics["commandbus_cycle_duration_seconds"].Unit)
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	// setup
	collector, reader := newMetricsCollector(t)
	labels := map[string]string{"command_type": "Deposit", "status": "success"}

	// act
	collector.IncrementCounter("commandbus_dispatch_total", labels)
	collector.IncrementCounterContext(t.Context(), "commandbus_dispatch_total", labels)
	collector.IncrementCounter("commandbus_dispatch_total", map[string]string{"command_type": "Deposit", "status": "rejected"})

	// assert
	sum, ok := collect(t, reader)["commandbus_dispatch_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	for _, point := range sum.DataPoints {
		status, _ := point.Attributes.Value(attribute.Key("status"))
		switch status.AsString() {
		case "success":
			assert.Equal(t, int64(2), point.Value)
		case "rejected":
			assert.Equal(t, int64(1), point.Value)
		default:
			t.Fatalf("unexpected status %q", status.AsString())
		}
	}
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	// setup
	collector, reader := newMetricsCollector(t)

	// act
	collector.RecordValue("commandbus_buffer_remaining_capacity", 12, nil)
	collector.RecordValueContext(t.Context(), "commandbus_buffer_remaining_capacity", 8, nil)

	// assert
	gauge, ok := collect(t, reader)["commandbus_buffer_remaining_capacity"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 8.0, gauge.DataPoints[0].Value, 0)
}

func Test_MetricsCollector_IsSafeForConcurrentUse(t *testing.T) {
	// setup
	collector, reader := newMetricsCollector(t)
	goroutines := 16

	// act
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("commandbus_faults_total", map[string]string{"stage": "invoke"})
			collector.RecordDuration("commandbus_stage_duration_seconds", time.Millisecond, nil)
		}()
	}
	wg.Wait()

	// assert
	sum, ok := collect(t, reader)["commandbus_faults_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(goroutines), sum.DataPoints[0].Value)
}
