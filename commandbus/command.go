package commandbus

import (
	"reflect"

	"github.com/google/uuid"
)

// TargetAggregateKey is the name of the metadata property containing the aggregate identifier of the command's target.
const TargetAggregateKey = "target.aggregate"

const (
	// CorrelationIDKey is the metadata property correlating commands and the events they produce.
	CorrelationIDKey = "correlation.id"

	// CausationIDKey is the metadata property naming the message that caused an event.
	CausationIDKey = "causation.id"
)

// Metadata is an alias type for the key/value properties attached to messages.
type Metadata = map[string]any

// TypedCommand can be implemented by command payloads to control the type name used for routing.
// Payloads without it are routed by their Go type name.
type TypedCommand interface {
	CommandType() string
}

// CommandMessage is an immutable command: a payload with metadata.
//
// The identifier of the target aggregate is expected in the metadata under TargetAggregateKey.
// It is NOT defaulted when missing. Such commands are accepted by Dispatch but fail with
// ErrMissingTargetAggregate in the prefetch stage.
//
// It should only be constructed with BuildCommandMessage.
type CommandMessage struct {
	identifier string
	payload    any
	metadata   Metadata
}

// MetadataOption adds a property to a CommandMessage while it is built.
type MetadataOption func(Metadata)

// TargetAggregate sets the identifier of the aggregate the command targets.
func TargetAggregate(aggregateIdentifier string) MetadataOption {
	return func(m Metadata) {
		m[TargetAggregateKey] = aggregateIdentifier
	}
}

// WithMetadata sets an arbitrary metadata property.
func WithMetadata(key string, value any) MetadataOption {
	return func(m Metadata) {
		m[key] = value
	}
}

// BuildCommandMessage is a factory method for CommandMessage.
//
// The metadata is copied, later changes to the given options' values do not leak into the message.
// A correlation ID is generated when none is supplied.
func BuildCommandMessage(payload any, options ...MetadataOption) CommandMessage {
	identifier := uuid.NewString()
	metadata := make(Metadata, len(options)+1)

	for _, option := range options {
		option(metadata)
	}

	if _, ok := metadata[CorrelationIDKey]; !ok {
		metadata[CorrelationIDKey] = identifier
	}

	return CommandMessage{
		identifier: identifier,
		payload:    payload,
		metadata:   metadata,
	}
}

// Identifier returns the unique identifier of this command message.
func (c CommandMessage) Identifier() string {
	return c.identifier
}

// Payload returns the command payload.
func (c CommandMessage) Payload() any {
	return c.payload
}

// Metadata returns a copy of the command's metadata.
func (c CommandMessage) Metadata() Metadata {
	copied := make(Metadata, len(c.metadata))
	for k, v := range c.metadata {
		copied[k] = v
	}

	return copied
}

// MetadataValue returns a single metadata property.
func (c CommandMessage) MetadataValue(key string) (any, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// TargetAggregateIdentifier returns the target aggregate identifier from the metadata.
// The second return value is false when the property is missing, empty or not a string.
func (c CommandMessage) TargetAggregateIdentifier() (string, bool) {
	v, ok := c.metadata[TargetAggregateKey]
	if !ok {
		return "", false
	}

	switch id := v.(type) {
	case string:
		return id, id != ""
	case interface{ String() string }:
		s := id.String()
		return s, s != ""
	default:
		return "", false
	}
}

// CommandType returns the routing key for this command.
func (c CommandMessage) CommandType() string {
	return CommandTypeOf(c.payload)
}

// AndMetadata returns a copy of the message with the given properties added.
// Interceptors use it to enrich commands, the original message is left untouched.
func (c CommandMessage) AndMetadata(options ...MetadataOption) CommandMessage {
	metadata := c.Metadata()
	for _, option := range options {
		option(metadata)
	}

	return CommandMessage{
		identifier: c.identifier,
		payload:    c.payload,
		metadata:   metadata,
	}
}

// CommandTypeOf returns the routing key for a command payload.
func CommandTypeOf(payload any) string {
	if typed, ok := payload.(TypedCommand); ok {
		return typed.CommandType()
	}

	t := reflect.TypeOf(payload)
	if t == nil {
		return ""
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.String()
}
