package redisbus_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventbus/redisbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore"
	"github.com/AntonStoeckl/pipelined-commandbus-go/testutil/testdoubles"
)

type parcelShipped struct {
	Carrier string
}

func (parcelShipped) EventType() string { return "ParcelShipped" }

type received struct {
	mu     sync.Mutex
	events commandbus.EventMessages
}

func (r *received) listen(_ context.Context, event commandbus.EventMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return nil
}

func (r *received) snapshot() commandbus.EventMessages {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append(commandbus.EventMessages(nil), r.events...)
}

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return server, client
}

func Test_NewEventBus_ErrorCases(t *testing.T) {
	_, client := newClient(t)
	serializer := eventstore.NewSerializer(parcelShipped{})

	tests := []struct {
		name          string
		client        redis.UniversalClient
		serializer    *eventstore.Serializer
		aggregateType string
		options       []redisbus.Option
		expectedErr   error
	}{
		{name: "nil client", serializer: serializer, aggregateType: "Parcel", expectedErr: redisbus.ErrNilRedisClient},
		{name: "nil serializer", client: client, aggregateType: "Parcel", expectedErr: redisbus.ErrNilSerializer},
		{name: "empty aggregate type", client: client, serializer: serializer, expectedErr: redisbus.ErrEmptyAggregateType},
		{
			name:          "empty channel prefix",
			client:        client,
			serializer:    serializer,
			aggregateType: "Parcel",
			options:       []redisbus.Option{redisbus.WithChannelPrefix("")},
			expectedErr:   redisbus.ErrEmptyChannelPrefix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			_, err := redisbus.NewEventBus(tt.client, tt.serializer, tt.aggregateType, tt.options...)

			// assert
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func Test_Channel_UsesPrefixAndEventType(t *testing.T) {
	// setup
	_, client := newClient(t)
	bus, err := redisbus.NewEventBus(client, eventstore.NewSerializer(), "Parcel", redisbus.WithChannelPrefix("shop."))
	require.NoError(t, err)

	// act
	channel := bus.Channel("ParcelShipped")

	// assert
	assert.Equal(t, "shop.ParcelShipped", channel)
}

func Test_Publish_Then_Listen(t *testing.T) {
	// setup
	_, client := newClient(t)
	bus, err := redisbus.NewEventBus(client, eventstore.NewSerializer(parcelShipped{}), "Parcel")
	require.NoError(t, err)

	got := &received{}
	require.NoError(t, bus.Listen(t.Context(), got.listen))

	// arrange
	sent := commandbus.EventMessages{
		commandbus.BuildEventMessage("P1", 1, parcelShipped{Carrier: "dhl"}, commandbus.Metadata{"tenant": "t1"}, time.Now()),
		commandbus.BuildEventMessage("P1", 2, parcelShipped{Carrier: "ups"}, nil, time.Now()),
	}

	// act
	for _, event := range sent {
		require.NoError(t, bus.Publish(t.Context(), event))
	}

	// assert
	require.Eventually(t, func() bool { return len(got.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)

	events := got.snapshot()
	assert.Equal(t, sent[0].Identifier, events[0].Identifier)
	assert.Equal(t, "P1", events[0].AggregateIdentifier)
	assert.Equal(t, parcelShipped{Carrier: "dhl"}, events[0].Payload)
	assert.Equal(t, "t1", events[0].Metadata["tenant"])
	assert.Equal(t, uint(2), events[1].SequenceNumber)
	assert.True(t, sent[1].OccurredAt.Equal(events[1].OccurredAt))
}

func Test_Publish_When_NobodyListens(t *testing.T) {
	// setup
	_, client := newClient(t)
	bus, err := redisbus.NewEventBus(client, eventstore.NewSerializer(parcelShipped{}), "Parcel")
	require.NoError(t, err)

	// act
	err = bus.Publish(t.Context(), commandbus.BuildEventMessage("P1", 1, parcelShipped{}, nil, time.Now()))

	// assert
	assert.NoError(t, err)
}

func Test_Publish_When_RedisIsDown(t *testing.T) {
	// setup
	server, client := newClient(t)
	bus, err := redisbus.NewEventBus(client, eventstore.NewSerializer(parcelShipped{}), "Parcel")
	require.NoError(t, err)
	server.Close()

	// act
	err = bus.Publish(t.Context(), commandbus.BuildEventMessage("P1", 1, parcelShipped{}, nil, time.Now()))

	// assert
	assert.ErrorIs(t, err, redisbus.ErrPublishingFailed)
}

func Test_Listen_DropsUndecodableMessages(t *testing.T) {
	// setup
	_, client := newClient(t)
	logger := testdoubles.NewLoggerSpy()
	bus, err := redisbus.NewEventBus(
		client,
		eventstore.NewSerializer(parcelShipped{}),
		"Parcel",
		redisbus.WithLogger(logger),
	)
	require.NoError(t, err)

	got := &received{}
	require.NoError(t, bus.Listen(t.Context(), got.listen))

	// act
	require.NoError(t, client.Publish(t.Context(), bus.Channel("ParcelShipped"), "not json").Err())
	require.NoError(t, bus.Publish(t.Context(), commandbus.BuildEventMessage("P1", 1, parcelShipped{}, nil, time.Now())))

	// assert
	require.Eventually(t, func() bool { return len(got.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, logger.HasLog(testdoubles.LevelWarn, "eventbus: dropping undecodable message"))
}

func Test_Listen_When_ListenerFails(t *testing.T) {
	// setup
	_, client := newClient(t)
	logger := testdoubles.NewLoggerSpy()
	bus, err := redisbus.NewEventBus(
		client,
		eventstore.NewSerializer(parcelShipped{}),
		"Parcel",
		redisbus.WithLogger(logger),
	)
	require.NoError(t, err)

	require.NoError(t, bus.Listen(t.Context(), func(context.Context, commandbus.EventMessage) error {
		return errors.New("projection down")
	}))

	// act
	require.NoError(t, bus.Publish(t.Context(), commandbus.BuildEventMessage("P1", 1, parcelShipped{}, nil, time.Now())))

	// assert
	require.Eventually(t, func() bool {
		return logger.HasLog(testdoubles.LevelWarn, "eventbus: listener failed")
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Listen_When_ListenerIsNil(t *testing.T) {
	// setup
	_, client := newClient(t)
	bus, err := redisbus.NewEventBus(client, eventstore.NewSerializer(), "Parcel")
	require.NoError(t, err)

	// act
	err = bus.Listen(t.Context(), nil)

	// assert
	assert.ErrorIs(t, err, redisbus.ErrNilListener)
}

func Test_Listen_When_RedisIsDown(t *testing.T) {
	// setup
	server, client := newClient(t)
	bus, err := redisbus.NewEventBus(client, eventstore.NewSerializer(parcelShipped{}), "Parcel")
	require.NoError(t, err)
	server.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	// act
	err = bus.Listen(ctx, (&received{}).listen)

	// assert
	assert.ErrorIs(t, err, redisbus.ErrSubscribingFailed)
	assert.NotEqual(t, redisbus.ErrSubscribingFailed, err, "the cause must be kept next to the sentinel")
}
