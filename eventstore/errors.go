package eventstore

import (
	"errors"
)

var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptyEventsTableName  = errors.New("events table name must not be empty")
	ErrNilSerializer         = errors.New("serializer must not be nil")

	// ErrConcurrencyConflict is returned by AppendEvents when another writer already appended an event
	// with the same aggregate type, aggregate identifier and sequence number.
	ErrConcurrencyConflict = errors.New("concurrency conflict, the sequence number is already taken")

	ErrQueryingEventsFailed        = errors.New("querying events failed")
	ErrAppendingEventFailed        = errors.New("appending the event failed")
	ErrBuildingQueryFailed         = errors.New("building the query failed")
	ErrScanningDBRowFailed         = errors.New("scanning the database row failed")
	ErrGettingRowsAffectedFailed   = errors.New("getting rows affected failed")
	ErrBuildingStorableEventFailed = errors.New("building the storable event failed")
	ErrCreatingSchemaFailed        = errors.New("creating the events table failed")

	ErrInvalidPayloadJSON       = errors.New("payload json is not valid")
	ErrInvalidMetadataJSON      = errors.New("metadata json is not valid")
	ErrEmptyEventType           = errors.New("event type must not be empty")
	ErrUnknownEventType         = errors.New("no event type registered")
	ErrSerializingEventFailed   = errors.New("serializing the event failed")
	ErrDeserializingEventFailed = errors.New("deserializing the event failed")
	ErrMixedAggregateStreams    = errors.New("events of one append must belong to the same aggregate")
)
