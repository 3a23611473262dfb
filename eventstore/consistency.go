package eventstore

import "context"

// ConsistencyLevel selects which database serves ReadEvents when an engine has a read replica.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary. The command bus needs it: an aggregate loaded for
	// a command must contain every event appended before, otherwise the append of the new events
	// runs into ErrConcurrencyConflict.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from a replica. Only for readers outside the command pipeline,
	// like projections or reporting, which can live with slightly stale streams.
	EventualConsistency
)

type contextKey string

// ConsistencyLevelKey is the context key holding the consistency level.
const ConsistencyLevelKey contextKey = "eventstore.consistency_level"

// WithStrongConsistency marks the context for reads from the primary.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency marks the context for reads that may be served by a replica.
//
//	events, err := store.ReadEvents(eventstore.WithEventualConsistency(ctx), "Account", "A1")
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel returns the level stored in the context, StrongConsistency when none is set.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
