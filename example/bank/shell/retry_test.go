package shell_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/features/depositmoney"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/shell"
	"github.com/AntonStoeckl/pipelined-commandbus-go/testutil/testdoubles"
)

type scriptedDispatcher struct {
	results []error
	calls   int
}

func (d *scriptedDispatcher) Dispatch(context.Context, commandbus.CommandMessage) error {
	d.calls++
	if d.calls > len(d.results) {
		return nil
	}

	return d.results[d.calls-1]
}

func depositMessage() commandbus.CommandMessage {
	return shell.NewCommandMessage(depositmoney.BuildCommand("A1", 1))
}

func Test_DispatchWithRetry_Success_NoRetries(t *testing.T) {
	// setup
	dispatcher := &scriptedDispatcher{}

	// act
	meta, err := shell.DispatchWithRetry(t.Context(), dispatcher, depositMessage())

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 1, dispatcher.calls)
	assert.Equal(t, 1, meta.Attempts)
	assert.Equal(t, time.Duration(0), meta.TotalDelay)
	assert.Equal(t, "none", meta.LastErrorType)
}

func Test_DispatchWithRetry_RetriesWhileBufferIsFull(t *testing.T) {
	// setup
	dispatcher := &scriptedDispatcher{results: []error{commandbus.ErrBufferFull, commandbus.ErrBufferFull}}
	metrics := testdoubles.NewMetricsCollectorSpy()

	// act
	meta, err := shell.DispatchWithRetry(t.Context(), dispatcher, depositMessage(), shell.WithMetrics(metrics))

	// assert
	assert.NoError(t, err)
	assert.Equal(t, 3, meta.Attempts)
	assert.Greater(t, meta.TotalDelay, time.Duration(0))
	assert.Len(t, metrics.RecordsFor(shell.DispatchRetriesMetric), 2)
	assert.Len(t, metrics.RecordsFor(shell.DispatchRetryDelayMetric), 2)
	assert.Empty(t, metrics.RecordsFor(shell.DispatchMaxRetriesReachedMetric))
}

func Test_DispatchWithRetry_When_MaxAttemptsAreReached(t *testing.T) {
	// setup
	dispatcher := &scriptedDispatcher{results: []error{
		commandbus.ErrBufferFull, commandbus.ErrBufferFull, commandbus.ErrBufferFull,
	}}
	metrics := testdoubles.NewMetricsCollectorSpy()

	// act
	meta, err := shell.DispatchWithRetry(
		t.Context(),
		dispatcher,
		depositMessage(),
		shell.WithMaxAttempts(3),
		shell.WithBaseDelay(time.Microsecond),
		shell.WithJitterFactor(0),
		shell.WithMetrics(metrics),
	)

	// assert
	assert.ErrorIs(t, err, commandbus.ErrBufferFull)
	assert.Equal(t, 3, meta.Attempts)
	assert.Equal(t, "buffer_full", meta.LastErrorType)
	assert.Equal(t, 1, metrics.CountWithLabel(shell.DispatchMaxRetriesReachedMetric, "command_type", depositmoney.CommandType))
}

func Test_DispatchWithRetry_When_ErrorIsPermanent(t *testing.T) {
	// setup
	dispatcher := &scriptedDispatcher{results: []error{commandbus.ErrBusStopped}}

	// act
	meta, err := shell.DispatchWithRetry(t.Context(), dispatcher, depositMessage())

	// assert
	assert.ErrorIs(t, err, commandbus.ErrBusStopped)
	assert.Equal(t, 1, dispatcher.calls)
	assert.Equal(t, "bus_stopped", meta.LastErrorType)
}

func Test_DispatchWithRetry_When_ContextEndsDuringBackoff(t *testing.T) {
	// setup
	dispatcher := &scriptedDispatcher{results: []error{commandbus.ErrBufferFull}}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	// act
	_, err := shell.DispatchWithRetry(ctx, dispatcher, depositMessage(), shell.WithBaseDelay(time.Hour))

	// assert
	assert.True(t, errors.Is(err, context.Canceled))
}

func Test_DispatchWithRetry_InvalidOptions(t *testing.T) {
	dispatcher := &scriptedDispatcher{}

	_, err := shell.DispatchWithRetry(t.Context(), dispatcher, depositMessage(), shell.WithMaxAttempts(0))
	assert.ErrorIs(t, err, shell.ErrInvalidMaxAttempts)

	_, err = shell.DispatchWithRetry(t.Context(), dispatcher, depositMessage(), shell.WithBaseDelay(-time.Second))
	assert.ErrorIs(t, err, shell.ErrNegativeBaseDelay)

	_, err = shell.DispatchWithRetry(t.Context(), dispatcher, depositMessage(), shell.WithJitterFactor(1.5))
	assert.ErrorIs(t, err, shell.ErrInvalidJitterFactor)

	_, err = shell.DispatchWithRetry(t.Context(), dispatcher, depositMessage(), shell.WithMetrics(nil))
	assert.ErrorIs(t, err, shell.ErrNilMetricsCollector)

	assert.Zero(t, dispatcher.calls)
}
