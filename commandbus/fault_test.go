package commandbus

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_LoggingFaultSink_CommandFailed_LogsTheFault(t *testing.T) {
	// setup
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := NewLoggingFaultSink(logger)

	// arrange
	command := BuildCommandMessage(deposit{Amount: 1}, TargetAggregate("A1"))

	// act
	sink.CommandFailed(context.Background(), Fault{
		Sequence:            42,
		Stage:               StageInvoke,
		Command:             command,
		AggregateIdentifier: "A1",
		Err:                 errors.Join(ErrHandlerFailed, errors.New("insufficient funds")),
	})

	// assert
	logged := buf.String()
	assert.Contains(t, logged, `"level":"ERROR"`)
	assert.Contains(t, logged, logMsgCycleFailed)
	assert.Contains(t, logged, `"stage":"invoke"`)
	assert.Contains(t, logged, `"sequence":42`)
	assert.Contains(t, logged, `"aggregate_id":"A1"`)
	assert.Contains(t, logged, "insufficient funds")
}

func Test_NewLoggingFaultSink_When_LoggerIsNil_Then_DefaultLoggerIsUsed(t *testing.T) {
	sink := NewLoggingFaultSink(nil)

	assert.NotNil(t, sink.logger)
}

func Test_RecoveryError_Error(t *testing.T) {
	err := &RecoveryError{PanicValue: "boom", StackTrace: "stack"}

	assert.Equal(t, "panic recovered: boom", err.Error())
}
