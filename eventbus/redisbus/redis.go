package redisbus

import (
	"context"
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore"
)

const DefaultChannelPrefix = "events"

const (
	logMsgPublished       = "eventbus: event published"
	logMsgBadEnvelope     = "eventbus: dropping undecodable message"
	logMsgListenerFailed  = "eventbus: listener failed"
	logMsgListenerStopped = "eventbus: listener stopped"

	logAttrChannel     = "channel"
	logAttrEventType   = "event_type"
	logAttrReceivers   = "receivers"
	logAttrAggregateID = "aggregate_id"
	logAttrError       = "error"
)

var (
	ErrNilRedisClient      = errors.New("redis client must not be nil")
	ErrNilSerializer       = errors.New("serializer must not be nil")
	ErrEmptyAggregateType  = errors.New("aggregate type must not be empty")
	ErrEmptyChannelPrefix  = errors.New("channel prefix must not be empty")
	ErrNilListener         = errors.New("listener must not be nil")
	ErrPublishingFailed    = errors.New("publishing the event to redis failed")
	ErrSubscribingFailed   = errors.New("subscribing to redis failed")
	ErrEncodingEventFailed = errors.New("encoding the event failed")
)

// Listener receives decoded events. Returned errors are logged, the message is not redelivered.
type Listener func(ctx context.Context, event commandbus.EventMessage) error

// EventBus publishes the events of one aggregate type to Redis.
type EventBus struct {
	client        redis.UniversalClient
	serializer    *eventstore.Serializer
	aggregateType string
	channelPrefix string
	json          jsoniter.API
	logger        commandbus.Logger
}

// Option defines a functional option for configuring EventBus.
type Option func(*EventBus) error

// WithChannelPrefix replaces DefaultChannelPrefix.
func WithChannelPrefix(prefix string) Option {
	return func(b *EventBus) error {
		if prefix == "" {
			return ErrEmptyChannelPrefix
		}

		b.channelPrefix = strings.TrimSuffix(prefix, ".")

		return nil
	}
}

// WithLogger sets a logger for publications and dropped messages.
func WithLogger(logger commandbus.Logger) Option {
	return func(b *EventBus) error {
		b.logger = logger
		return nil
	}
}

// NewEventBus creates an EventBus for events of the given aggregate type.
func NewEventBus(
	client redis.UniversalClient,
	serializer *eventstore.Serializer,
	aggregateType string,
	options ...Option,
) (*EventBus, error) {

	if client == nil {
		return nil, ErrNilRedisClient
	}

	if serializer == nil {
		return nil, ErrNilSerializer
	}

	if aggregateType == "" {
		return nil, ErrEmptyAggregateType
	}

	bus := &EventBus{
		client:        client,
		serializer:    serializer,
		aggregateType: aggregateType,
		channelPrefix: DefaultChannelPrefix,
		json:          jsoniter.ConfigCompatibleWithStandardLibrary,
	}

	for _, option := range options {
		if err := option(bus); err != nil {
			return nil, err
		}
	}

	return bus, nil
}

var _ commandbus.EventBus = (*EventBus)(nil)

// Channel returns the channel events of the given type are published to.
func (b *EventBus) Channel(eventType string) string {
	return b.channelPrefix + "." + eventType
}

// Publish encodes the event and publishes it to its event type's channel.
func (b *EventBus) Publish(ctx context.Context, event commandbus.EventMessage) error {
	storable, err := b.serializer.ToStorable(b.aggregateType, event)
	if err != nil {
		return errors.Join(ErrEncodingEventFailed, err)
	}

	raw, err := b.json.Marshal(envelopeFromStorable(storable))
	if err != nil {
		return errors.Join(ErrEncodingEventFailed, err)
	}

	channel := b.Channel(storable.EventType)

	receivers, err := b.client.Publish(ctx, channel, raw).Result()
	if err != nil {
		return errors.Join(ErrPublishingFailed, err)
	}

	b.debug(logMsgPublished,
		logAttrChannel, channel,
		logAttrEventType, storable.EventType,
		logAttrAggregateID, storable.AggregateID,
		logAttrReceivers, receivers)

	return nil
}

// Listen pattern-subscribes to all event channels and calls the listener for each decoded event,
// from a single goroutine in the order Redis delivers them.
// It returns once the subscription is confirmed. Delivery stops when ctx is canceled.
func (b *EventBus) Listen(ctx context.Context, listener Listener) error {
	if listener == nil {
		return ErrNilListener
	}

	sub := b.client.PSubscribe(ctx, b.channelPrefix+".*")

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return errors.Join(ErrSubscribingFailed, err)
	}

	go b.forward(ctx, sub, listener)

	return nil
}

func (b *EventBus) forward(ctx context.Context, sub *redis.PubSub, listener Listener) {
	defer func() {
		_ = sub.Close()
		b.debug(logMsgListenerStopped)
	}()

	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok || msg == nil {
				return
			}

			event, err := b.decode(msg.Payload)
			if err != nil {
				b.warn(logMsgBadEnvelope, logAttrChannel, msg.Channel, logAttrError, err.Error())
				continue
			}

			if err = listener(ctx, event); err != nil {
				b.warn(logMsgListenerFailed,
					logAttrChannel, msg.Channel,
					logAttrEventType, event.EventType(),
					logAttrError, err.Error())
			}
		}
	}
}

func (b *EventBus) decode(payload string) (commandbus.EventMessage, error) {
	var env envelope
	if err := b.json.UnmarshalFromString(payload, &env); err != nil {
		return commandbus.EventMessage{}, err
	}

	storable, err := env.toStorable()
	if err != nil {
		return commandbus.EventMessage{}, err
	}

	return b.serializer.FromStorable(storable)
}

func (b *EventBus) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func (b *EventBus) warn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}
