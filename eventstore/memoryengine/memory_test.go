package memoryengine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore/memoryengine"
	"github.com/AntonStoeckl/pipelined-commandbus-go/testutil/testdoubles"
)

type lightSwitched struct {
	On bool
}

func (lightSwitched) EventType() string { return "LightSwitched" }

func switched(id string, sequence uint) commandbus.EventMessage {
	return commandbus.BuildEventMessage(id, sequence, lightSwitched{On: sequence%2 == 1}, nil, time.Now())
}

func Test_AppendEvents_Then_ReadEvents(t *testing.T) {
	// setup
	es := memoryengine.NewEventStore()
	ctx := t.Context()

	// act
	require.NoError(t, es.AppendEvents(ctx, "Lamp", commandbus.EventMessages{switched("L1", 1), switched("L1", 2)}))
	require.NoError(t, es.AppendEvents(ctx, "Lamp", commandbus.EventMessages{switched("L2", 1)}))
	require.NoError(t, es.AppendEvents(ctx, "Lamp", commandbus.EventMessages{switched("L1", 3)}))

	events, err := es.ReadEvents(ctx, "Lamp", "L1")

	// assert
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, uint(3), events[2].SequenceNumber)
	assert.Equal(t, 2, es.StreamCount())
}

func Test_ReadEvents_ReturnsACopy(t *testing.T) {
	// setup
	es := memoryengine.NewEventStore()
	require.NoError(t, es.AppendEvents(t.Context(), "Lamp", commandbus.EventMessages{switched("L1", 1)}))

	// act
	events, err := es.ReadEvents(t.Context(), "Lamp", "L1")
	require.NoError(t, err)
	events[0].SequenceNumber = 99

	// assert
	again, err := es.ReadEvents(t.Context(), "Lamp", "L1")
	require.NoError(t, err)
	assert.Equal(t, uint(1), again[0].SequenceNumber)
}

func Test_ReadEvents_When_AggregateIsUnknown(t *testing.T) {
	// setup
	es := memoryengine.NewEventStore()

	// act
	events, err := es.ReadEvents(t.Context(), "Lamp", "nobody")

	// assert
	require.NoError(t, err)
	assert.Empty(t, events)
}

func Test_AppendEvents_ErrorCases(t *testing.T) {
	tests := []struct {
		name        string
		events      commandbus.EventMessages
		expectedErr error
	}{
		{
			name:        "sequence number taken",
			events:      commandbus.EventMessages{switched("L1", 1)},
			expectedErr: eventstore.ErrConcurrencyConflict,
		},
		{
			name:        "gap in the stream",
			events:      commandbus.EventMessages{switched("L1", 3)},
			expectedErr: eventstore.ErrConcurrencyConflict,
		},
		{
			name:        "gap inside the batch",
			events:      commandbus.EventMessages{switched("L1", 2), switched("L1", 4)},
			expectedErr: eventstore.ErrConcurrencyConflict,
		},
		{
			name:        "mixed aggregates",
			events:      commandbus.EventMessages{switched("L1", 2), switched("L2", 1)},
			expectedErr: eventstore.ErrMixedAggregateStreams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// setup
			logger := testdoubles.NewLoggerSpy()
			es := memoryengine.NewEventStore(memoryengine.WithLogger(logger))
			require.NoError(t, es.AppendEvents(t.Context(), "Lamp", commandbus.EventMessages{switched("L1", 1)}))

			// act
			err := es.AppendEvents(t.Context(), "Lamp", tt.events)

			// assert
			assert.ErrorIs(t, err, tt.expectedErr)

			events, _ := es.ReadEvents(t.Context(), "Lamp", "L1")
			assert.Len(t, events, 1, "a failed append must not change the stream")
		})
	}
}

func Test_AppendEvents_When_ContextIsCanceled(t *testing.T) {
	// setup
	es := memoryengine.NewEventStore()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	// act
	err := es.AppendEvents(ctx, "Lamp", commandbus.EventMessages{switched("L1", 1)})

	// assert
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_AppendEvents_ConcurrentWritersOnOneStream(t *testing.T) {
	// setup
	es := memoryengine.NewEventStore()
	writers := 8

	// act
	var wg sync.WaitGroup
	results := make(chan error, writers)

	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- es.AppendEvents(t.Context(), "Lamp", commandbus.EventMessages{switched("L1", 1)})
		}()
	}

	wg.Wait()
	close(results)

	// assert
	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}

	assert.Equal(t, 1, succeeded)
}
