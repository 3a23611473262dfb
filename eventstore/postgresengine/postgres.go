package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore/postgresengine/internal/adapters"
)

const (
	defaultEventTableName          = "events"
	logMsgBuildSelectQueryFailed   = "failed to build select query"
	logMsgDBQueryFailed            = "database query execution failed"
	logMsgCloseRowsFailed          = "failed to close database rows"
	logMsgScanRowFailed            = "failed to scan database row"
	logMsgBuildStorableEventFailed = "failed to build storable event from database row"
	logMsgSerializingFailed        = "failed to serialize events"
	logMsgDeserializingFailed      = "failed to deserialize events"
	logMsgBuildInsertQueryFailed   = "failed to build insert query"
	logMsgDBExecFailed             = "database execution failed during event append"
	logMsgRowsAffectedFailed       = "failed to get rows affected count"
	logMsgSchemaCreated            = "schema created"
	logMsgCreateSchemaFailed       = "failed to create schema"
	logMsgQueryCompleted           = "query completed"
	logMsgEventsAppended           = "events appended"
	logMsgConcurrencyConflict      = "concurrency conflict detected"
	logMsgSQLExecuted              = "executed sql for: "
	logMsgOperation                = "eventstore operation: "
	logAttrError                   = "error"
	logAttrQuery                   = "query"
	logAttrEventType               = "event_type"
	logAttrEventCount              = "event_count"
	logAttrDurationMS              = "duration_ms"
	logAttrExpectedEvents          = "expected_events"
	logAttrRowsAffected            = "rows_affected"
	logAttrExpectedSequence        = "expected_sequence"
	logAttrAggregateType           = "aggregate_type"
	logAttrAggregateID             = "aggregate_id"
	logAttrTable                   = "table"
	logActionQuery                 = "query"
	logActionAppend                = "append"
	logActionCreateSchema          = "create schema"
	colEventID                     = "event_id"
	colAggregateType               = "aggregate_type"
	colAggregateID                 = "aggregate_id"
	colSequenceNumber              = "sequence_number"
	colEventType                   = "event_type"
	colOccurredAt                  = "occurred_at"
	colPayload                     = "payload"
	colMetadata                    = "metadata"
	cteContext                     = "context"
	cteVals                        = "vals"
	dialectPostgres                = "postgres"
	aliasMaxSeq                    = "max_seq"
	castUUID                       = "?::uuid"
	castText                       = "?::text"
	castBigint                     = "?::bigint"
	castTimestamp                  = "?::timestamp with time zone"
	castJsonb                      = "?::jsonb"
	selectEventIDAsText            = colEventID + "::text"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
	queryDuration     = time.Duration
)

// EventStore stores per-aggregate event streams in PostgreSQL and implements commandbus.EventStore.
// It leverages a database adapter and supports customizable logging and event table configuration.
type EventStore struct {
	db               adapters.DBAdapter
	serializer       *eventstore.Serializer
	eventTableName   string
	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector
}

var _ commandbus.EventStore = (*EventStore)(nil)

type queryResultRow struct {
	eventID        string
	aggregateType  string
	aggregateID    string
	sequenceNumber int64
	eventType      string
	occurredAt     time.Time
	payload        []byte
	metadata       []byte
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, serializer *eventstore.Serializer, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), serializer, options...)
}

// NewEventStoreFromPGXPoolAndReplica creates a new EventStore using a primary and a replica pgx Pool.
// ReadEvents is served by the replica only for contexts marked with eventstore.WithEventualConsistency.
func NewEventStoreFromPGXPoolAndReplica(
	db *pgxpool.Pool,
	replica *pgxpool.Pool,
	serializer *eventstore.Serializer,
	options ...Option,
) (*EventStore, error) {

	if db == nil || replica == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapterWithReplica(db, replica), serializer, options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB (lib/pq driver) with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, serializer *eventstore.Serializer, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), serializer, options...)
}

// NewEventStoreFromSQLDBAndReplica creates a new EventStore using a primary and a replica sql.DB.
func NewEventStoreFromSQLDBAndReplica(
	db *sql.DB,
	replica *sql.DB,
	serializer *eventstore.Serializer,
	options ...Option,
) (*EventStore, error) {

	if db == nil || replica == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapterWithReplica(db, replica), serializer, options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB (lib/pq driver) with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, serializer *eventstore.Serializer, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), serializer, options...)
}

// NewEventStoreFromSQLXAndReplica creates a new EventStore using a primary and a replica sqlx.DB.
func NewEventStoreFromSQLXAndReplica(
	db *sqlx.DB,
	replica *sqlx.DB,
	serializer *eventstore.Serializer,
	options ...Option,
) (*EventStore, error) {

	if db == nil || replica == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapterWithReplica(db, replica), serializer, options...)
}

func newEventStore(db adapters.DBAdapter, serializer *eventstore.Serializer, options ...Option) (*EventStore, error) {
	if serializer == nil {
		return nil, eventstore.ErrNilSerializer
	}

	es := &EventStore{
		db:             db,
		serializer:     serializer,
		eventTableName: defaultEventTableName,
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// CreateSchema creates the events table with its stream constraint if it does not exist yet.
func (es *EventStore) CreateSchema(ctx context.Context) error {
	sqlQuery := es.buildCreateTableStatement()

	start := time.Now()
	_, execErr := es.db.Exec(ctx, sqlQuery)
	es.logQueryWithDuration(ctx, sqlQuery, logActionCreateSchema, time.Since(start))

	if execErr != nil {
		es.logError(ctx, logMsgCreateSchemaFailed, execErr, logAttrTable, es.eventTableName)
		return errors.Join(eventstore.ErrCreatingSchemaFailed, execErr)
	}

	es.logOperation(ctx, logMsgSchemaCreated, logAttrTable, es.eventTableName)

	return nil
}

// ReadEvents returns the stream of one aggregate ordered by sequence number.
// An aggregate without events yields an empty stream.
func (es *EventStore) ReadEvents(ctx context.Context, aggregateType string, aggregateIdentifier string) (
	commandbus.EventMessages,
	error,
) {

	metrics := es.startQueryMetrics(ctx, aggregateType)
	tracer, ctx := es.startQueryTracing(ctx, aggregateType, aggregateIdentifier)

	sqlQuery, buildQueryErr := es.buildSelectQuery(aggregateType, aggregateIdentifier)
	if buildQueryErr != nil {
		es.logError(ctx, logMsgBuildSelectQueryFailed, buildQueryErr)
		metrics.recordError(errorTypeBuildQuery, 0)
		tracer.finishError(errorTypeBuildQuery, 0)

		return nil, buildQueryErr
	}

	rows, duration, queryErr := es.executeQuery(ctx, sqlQuery)
	if queryErr != nil {
		metrics.recordError(errorTypeDatabaseQuery, duration)
		tracer.finishError(errorTypeDatabaseQuery, duration)

		return nil, queryErr
	}
	defer es.closeRows(ctx, rows)

	storables, scanErr := es.processQueryResults(ctx, rows)
	if scanErr != nil {
		metrics.recordError(errorTypeRowScan, duration)
		tracer.finishError(errorTypeRowScan, duration)

		return nil, scanErr
	}

	events, deserializeErr := es.serializer.FromStorableEvents(storables)
	if deserializeErr != nil {
		es.logError(ctx, logMsgDeserializingFailed, deserializeErr, logAttrAggregateType, aggregateType)
		metrics.recordError(errorTypeSerialization, duration)
		tracer.finishError(errorTypeSerialization, duration)

		return nil, deserializeErr
	}

	es.logOperation(
		ctx,
		logMsgQueryCompleted,
		logAttrAggregateType, aggregateType,
		logAttrEventCount, len(events),
		logAttrDurationMS, es.toMilliseconds(duration))

	metrics.recordSuccess(len(events), duration)
	tracer.finishSuccess(len(events), duration)

	return events, nil
}

// executeQuery executes the SQL query and returns rows with timing information.
func (es *EventStore) executeQuery(ctx context.Context, sqlQuery string) (
	adapters.DBRows,
	queryDuration,
	error,
) {

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionQuery, duration)

	if queryErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)

		return nil, duration, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}

	return rows, duration, nil
}

// closeRows safely closes database rows and logs any errors.
func (es *EventStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		es.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// processQueryResults converts database rows into storable events.
func (es *EventStore) processQueryResults(ctx context.Context, rows adapters.DBRows) (eventstore.StorableEvents, error) {
	result := queryResultRow{}
	storables := make(eventstore.StorableEvents, 0)

	for rows.Next() {
		rowScanErr := rows.Scan(
			&result.eventID,
			&result.aggregateType,
			&result.aggregateID,
			&result.sequenceNumber,
			&result.eventType,
			&result.occurredAt,
			&result.payload,
			&result.metadata,
		)
		if rowScanErr != nil {
			es.logError(ctx, logMsgScanRowFailed, rowScanErr)

			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, rowScanErr)
		}

		position := eventstore.StreamPosition{
			EventID:        result.eventID,
			AggregateType:  result.aggregateType,
			AggregateID:    result.aggregateID,
			SequenceNumber: uint(result.sequenceNumber), //nolint:gosec // sequence numbers are positive
		}

		storable, buildStorableErr := eventstore.BuildStorableEvent(
			position,
			result.eventType,
			result.occurredAt,
			result.payload,
			result.metadata,
		)
		if buildStorableErr != nil {
			es.logError(ctx, logMsgBuildStorableEventFailed, buildStorableErr, logAttrEventType, result.eventType)

			return nil, errors.Join(eventstore.ErrBuildingStorableEventFailed, buildStorableErr)
		}

		storables = append(storables, storable)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		es.logError(ctx, logMsgScanRowFailed, rowsErr)

		return nil, errors.Join(eventstore.ErrScanningDBRowFailed, rowsErr)
	}

	return storables, nil
}

// AppendEvents appends the events of one aggregate atomically.
//
// The statement only inserts when the stream's current maximum sequence number equals the sequence
// number of the first event minus one, and the unique stream constraint rejects racing writers.
// Both cases are reported as eventstore.ErrConcurrencyConflict.
func (es *EventStore) AppendEvents(ctx context.Context, aggregateType string, events commandbus.EventMessages) error {
	if len(events) == 0 {
		return nil
	}

	metrics := es.startAppendMetrics(ctx, aggregateType)
	tracer, ctx := es.startAppendTracing(ctx, aggregateType, events)

	storables, serializeErr := es.serializer.ToStorableEvents(aggregateType, events)
	if serializeErr != nil {
		es.logError(ctx, logMsgSerializingFailed, serializeErr, logAttrAggregateType, aggregateType)
		metrics.recordError(errorTypeSerialization, 0)
		tracer.finishError(errorTypeSerialization, 0)

		return serializeErr
	}

	expectedMaxSequenceNumber := storables[0].SequenceNumber - 1

	sqlQuery, buildQueryErr := es.buildInsertQuery(storables, expectedMaxSequenceNumber)
	if buildQueryErr != nil {
		es.logError(ctx, logMsgBuildInsertQueryFailed, buildQueryErr, logAttrEventCount, len(storables))
		metrics.recordError(errorTypeBuildQuery, 0)
		tracer.finishError(errorTypeBuildQuery, 0)

		return buildQueryErr
	}

	rowsAffected, duration, execErr := es.executeAppendQuery(ctx, sqlQuery)
	if execErr != nil {
		if errors.Is(execErr, eventstore.ErrConcurrencyConflict) {
			metrics.recordConflict(duration)
			tracer.finishError(errorTypeConcurrencyConflict, duration)

			return execErr
		}

		metrics.recordError(errorTypeDatabaseExec, duration)
		tracer.finishError(errorTypeDatabaseExec, duration)

		return execErr
	}

	if err := es.validateAppendResult(ctx, rowsAffected, len(storables), expectedMaxSequenceNumber); err != nil {
		metrics.recordConflict(duration)
		tracer.finishError(errorTypeConcurrencyConflict, duration)

		return err
	}

	es.logOperation(
		ctx,
		logMsgEventsAppended,
		logAttrAggregateType, aggregateType,
		logAttrAggregateID, storables[0].AggregateID,
		logAttrEventCount, len(storables),
		logAttrDurationMS, es.toMilliseconds(duration),
	)

	metrics.recordSuccess(len(storables), duration)
	tracer.finishSuccess(len(storables), duration)

	return nil
}

// executeAppendQuery executes the SQL append query and returns rows affected and duration.
func (es *EventStore) executeAppendQuery(ctx context.Context, sqlQuery string) (
	rowsAffectedInt64,
	queryDuration,
	error,
) {

	start := time.Now()
	tag, execErr := es.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(ctx, sqlQuery, logActionAppend, duration)

	if execErr != nil {
		if es.db.IsUniqueViolation(execErr) {
			es.logOperation(ctx, logMsgConcurrencyConflict, logAttrError, execErr.Error())

			return 0, duration, eventstore.ErrConcurrencyConflict
		}

		es.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)

		return 0, duration, errors.Join(eventstore.ErrAppendingEventFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := tag.RowsAffected()
	if rowsAffectedErr != nil {
		es.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)

		return 0, duration, errors.Join(eventstore.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, duration, nil
}

// validateAppendResult detects a stale expected sequence number, which makes the guarded insert a no-op.
func (es *EventStore) validateAppendResult(
	ctx context.Context,
	rowsAffected int64,
	expectedEventCount int,
	expectedMaxSequenceNumber uint,
) error {

	if rowsAffected < int64(expectedEventCount) {
		es.logOperation(
			ctx,
			logMsgConcurrencyConflict,
			logAttrExpectedEvents, expectedEventCount,
			logAttrRowsAffected, rowsAffected,
			logAttrExpectedSequence, expectedMaxSequenceNumber,
		)

		return eventstore.ErrConcurrencyConflict
	}

	return nil
}

func (es *EventStore) buildSelectQuery(aggregateType string, aggregateIdentifier string) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventTableName).
		Select(
			goqu.L(selectEventIDAsText),
			colAggregateType,
			colAggregateID,
			colSequenceNumber,
			colEventType,
			colOccurredAt,
			colPayload,
			colMetadata,
		).
		Where(es.streamCondition(aggregateType, aggregateIdentifier)...).
		Order(goqu.I(colSequenceNumber).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es *EventStore) buildInsertQuery(
	events eventstore.StorableEvents,
	expectedMaxSequenceNumber uint,
) (sqlQueryString, error) {

	builder := goqu.Dialect(dialectPostgres)
	first := events[0]

	// The current head of the stream
	cteStmt := builder.
		From(es.eventTableName).
		Select(goqu.MAX(colSequenceNumber).As(aliasMaxSeq)).
		Where(es.streamCondition(first.AggregateType, first.AggregateID)...)

	// One SELECT per event, combined with UNION ALL
	valuesStmt := es.buildValuesSelect(builder, events[0])
	for _, event := range events[1:] {
		valuesStmt = valuesStmt.UnionAll(es.buildValuesSelect(builder, event))
	}

	columns := []string{
		colEventID,
		colAggregateType,
		colAggregateID,
		colSequenceNumber,
		colEventType,
		colOccurredAt,
		colPayload,
		colMetadata,
	}

	insertCols := make([]any, len(columns))
	valsCols := make([]any, len(columns))
	for i, column := range columns {
		insertCols[i] = column
		valsCols[i] = fmt.Sprintf("%s.%s", cteVals, column)
	}

	insertStmt := builder.
		Insert(es.eventTableName).
		Cols(insertCols...).
		With(cteContext, cteStmt).
		With(cteVals, valuesStmt).
		FromQuery(
			builder.From(cteContext, cteVals).
				Select(valsCols...).
				Where(goqu.COALESCE(goqu.C(aliasMaxSeq), 0).Eq(goqu.V(expectedMaxSequenceNumber))),
		)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es *EventStore) buildValuesSelect(builder goqu.DialectWrapper, event eventstore.StorableEvent) *goqu.SelectDataset {
	return builder.Select(
		goqu.L(castUUID, event.EventID).As(colEventID),
		goqu.L(castText, event.AggregateType).As(colAggregateType),
		goqu.L(castText, event.AggregateID).As(colAggregateID),
		goqu.L(castBigint, event.SequenceNumber).As(colSequenceNumber),
		goqu.L(castText, event.EventType).As(colEventType),
		goqu.L(castTimestamp, event.OccurredAt).As(colOccurredAt),
		goqu.L(castJsonb, event.PayloadJSON).As(colPayload),
		goqu.L(castJsonb, event.MetadataJSON).As(colMetadata),
	)
}

func (es *EventStore) streamCondition(aggregateType string, aggregateIdentifier string) []exp.Expression {
	return []exp.Expression{
		goqu.C(colAggregateType).Eq(aggregateType),
		goqu.C(colAggregateID).Eq(aggregateIdentifier),
	}
}

func (es *EventStore) buildCreateTableStatement() sqlQueryString {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
	global_position BIGSERIAL PRIMARY KEY,
	%s UUID NOT NULL UNIQUE,
	%s TEXT NOT NULL,
	%s TEXT NOT NULL,
	%s BIGINT NOT NULL,
	%s TEXT NOT NULL,
	%s TIMESTAMPTZ NOT NULL,
	%s JSONB NOT NULL,
	%s JSONB NOT NULL,
	CONSTRAINT %s UNIQUE (%s, %s, %s)
)`,
		pq.QuoteIdentifier(es.eventTableName),
		colEventID,
		colAggregateType,
		colAggregateID,
		colSequenceNumber,
		colEventType,
		colOccurredAt,
		colPayload,
		colMetadata,
		pq.QuoteIdentifier(es.eventTableName+"_stream_uq"),
		colAggregateType,
		colAggregateID,
		colSequenceNumber,
	)
}
