package commandbus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deposit struct {
	Amount int
}

type typedDeposit struct{}

func (typedDeposit) CommandType() string { return "bank.Deposit" }

type stringerID string

func (s stringerID) String() string { return string(s) }

func Test_BuildCommandMessage(t *testing.T) {
	// act
	command := BuildCommandMessage(deposit{Amount: 10}, TargetAggregate("A1"), WithMetadata("actor", "alice"))

	// assert
	_, err := uuid.Parse(command.Identifier())
	require.NoError(t, err)

	target, ok := command.TargetAggregateIdentifier()
	assert.True(t, ok)
	assert.Equal(t, "A1", target)

	actor, ok := command.MetadataValue("actor")
	assert.True(t, ok)
	assert.Equal(t, "alice", actor)

	correlation, _ := command.MetadataValue(CorrelationIDKey)
	assert.Equal(t, command.Identifier(), correlation)
	assert.Equal(t, deposit{Amount: 10}, command.Payload())
}

func Test_CommandMessage_Metadata_ReturnsACopy(t *testing.T) {
	command := BuildCommandMessage(deposit{}, TargetAggregate("A1"))

	command.Metadata()[TargetAggregateKey] = "A2"

	target, _ := command.TargetAggregateIdentifier()
	assert.Equal(t, "A1", target)
}

func Test_CommandMessage_TargetAggregateIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		options    []MetadataOption
		expectedID string
		expectedOK bool
	}{
		{name: "missing", expectedOK: false},
		{name: "empty", options: []MetadataOption{TargetAggregate("")}, expectedOK: false},
		{name: "string", options: []MetadataOption{TargetAggregate("A1")}, expectedID: "A1", expectedOK: true},
		{name: "stringer", options: []MetadataOption{WithMetadata(TargetAggregateKey, stringerID("A2"))}, expectedID: "A2", expectedOK: true},
		{name: "wrong type", options: []MetadataOption{WithMetadata(TargetAggregateKey, 42)}, expectedOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := BuildCommandMessage(deposit{}, tt.options...).TargetAggregateIdentifier()

			assert.Equal(t, tt.expectedOK, ok)
			assert.Equal(t, tt.expectedID, id)
		})
	}
}

func Test_CommandMessage_AndMetadata_LeavesTheOriginalUntouched(t *testing.T) {
	original := BuildCommandMessage(deposit{}, TargetAggregate("A1"))

	enriched := original.AndMetadata(WithMetadata("tenant", "acme"))

	_, ok := original.MetadataValue("tenant")
	assert.False(t, ok)

	tenant, ok := enriched.MetadataValue("tenant")
	assert.True(t, ok)
	assert.Equal(t, "acme", tenant)
	assert.Equal(t, original.Identifier(), enriched.Identifier())
}

func Test_CommandTypeOf(t *testing.T) {
	assert.Equal(t, "commandbus.deposit", CommandTypeOf(deposit{}))
	assert.Equal(t, "commandbus.deposit", CommandTypeOf(&deposit{}))
	assert.Equal(t, "bank.Deposit", CommandTypeOf(typedDeposit{}))
	assert.Equal(t, "", CommandTypeOf(nil))
}
