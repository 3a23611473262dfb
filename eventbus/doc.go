// Package eventbus groups the implementations of commandbus.EventBus.
//
//   - memorybus delivers events synchronously to in-process listeners
//   - redisbus publishes events as JSON to Redis Pub/Sub channels, one channel per event type
package eventbus
