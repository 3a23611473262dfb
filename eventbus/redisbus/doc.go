// Package redisbus provides a commandbus.EventBus publishing to Redis Pub/Sub.
//
// Each event is encoded as a JSON envelope and published to the channel "<prefix>.<event type>".
// Subscribers use Listen, which pattern-subscribes to "<prefix>.*" and decodes the envelopes back into
// commandbus.EventMessage values with the same eventstore.Serializer the event store uses.
//
// Redis Pub/Sub is fire-and-forget: events published while no subscriber is connected are lost.
// Consumers needing every event read them from the event store.
package redisbus
