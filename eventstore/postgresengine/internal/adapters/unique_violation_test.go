package adapters

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func Test_IsUniqueViolation(t *testing.T) {
	pgxAdapter := &PGXAdapter{}
	sqlAdapter := &SQLAdapter{}
	sqlxAdapter := &SQLXAdapter{}

	pgxViolation := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	pqViolation := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
	pqOther := &pq.Error{Code: "23503"}

	assert.True(t, pgxAdapter.IsUniqueViolation(pgxViolation))
	assert.False(t, pgxAdapter.IsUniqueViolation(pqViolation))
	assert.False(t, pgxAdapter.IsUniqueViolation(errors.New("boom")))

	assert.True(t, sqlAdapter.IsUniqueViolation(pqViolation))
	assert.True(t, sqlxAdapter.IsUniqueViolation(pqViolation))
	assert.False(t, sqlAdapter.IsUniqueViolation(pqOther))
	assert.False(t, sqlxAdapter.IsUniqueViolation(pgxViolation))
}
