package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testPosition() StreamPosition {
	return StreamPosition{
		EventID:        "0b6a0f1e-5f22-4a3b-9a57-1f0c3c1d2e4f",
		AggregateType:  "Account",
		AggregateID:    "A1",
		SequenceNumber: 3,
	}
}

func Test_BuildStorableEvent_ErrorCases(t *testing.T) {
	validTime := time.Now()
	validPayloadJSON := []byte(`{"key": "value"}`)
	validMetadataJSON := []byte(`{"meta": "data"}`)

	tests := []struct {
		name         string
		eventType    string
		payloadJSON  []byte
		metadataJSON []byte
		expectedErr  error
	}{
		{
			name:         "empty event type",
			eventType:    "",
			payloadJSON:  validPayloadJSON,
			metadataJSON: validMetadataJSON,
			expectedErr:  ErrEmptyEventType,
		},
		{
			name:         "invalid payload JSON",
			eventType:    "Deposited",
			payloadJSON:  []byte(`{"invalid": json}`),
			metadataJSON: validMetadataJSON,
			expectedErr:  ErrInvalidPayloadJSON,
		},
		{
			name:         "invalid metadata JSON",
			eventType:    "Deposited",
			payloadJSON:  validPayloadJSON,
			metadataJSON: []byte(`{"invalid": json}`),
			expectedErr:  ErrInvalidMetadataJSON,
		},
		{
			name:         "nil payload JSON",
			eventType:    "Deposited",
			payloadJSON:  nil,
			metadataJSON: validMetadataJSON,
			expectedErr:  ErrInvalidPayloadJSON,
		},
		{
			name:         "empty metadata JSON",
			eventType:    "Deposited",
			payloadJSON:  validPayloadJSON,
			metadataJSON: []byte(``),
			expectedErr:  ErrInvalidMetadataJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildStorableEvent(testPosition(), tt.eventType, validTime, tt.payloadJSON, tt.metadataJSON)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func Test_BuildStorableEvent_Success(t *testing.T) {
	occurredAt := time.Now()
	payloadJSON := []byte(`{"Amount": 10}`)
	metadataJSON := []byte(`{"correlation.id": "corr-789"}`)

	storableEvent, err := BuildStorableEvent(testPosition(), "Deposited", occurredAt, payloadJSON, metadataJSON)

	assert.NoError(t, err)
	assert.Equal(t, testPosition().EventID, storableEvent.EventID)
	assert.Equal(t, "Account", storableEvent.AggregateType)
	assert.Equal(t, "A1", storableEvent.AggregateID)
	assert.Equal(t, uint(3), storableEvent.SequenceNumber)
	assert.Equal(t, "Deposited", storableEvent.EventType)
	assert.Equal(t, occurredAt, storableEvent.OccurredAt)
	assert.Equal(t, payloadJSON, storableEvent.PayloadJSON)
	assert.Equal(t, metadataJSON, storableEvent.MetadataJSON)
}

func Test_BuildStorableEventWithEmptyMetadata_Success(t *testing.T) {
	storableEvent, err := BuildStorableEventWithEmptyMetadata(testPosition(), "Deposited", time.Now(), []byte(`{"Amount": 10}`))

	assert.NoError(t, err)
	assert.Equal(t, []byte(`{}`), storableEvent.MetadataJSON)
}

func Test_BuildStorableEventWithEmptyMetadata_When_PayloadIsInvalid(t *testing.T) {
	_, err := BuildStorableEventWithEmptyMetadata(testPosition(), "Deposited", time.Now(), []byte(`not json`))

	assert.ErrorIs(t, err, ErrInvalidPayloadJSON)
}
