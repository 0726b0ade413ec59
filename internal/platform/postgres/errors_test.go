package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/englishprint/papergen/internal/platform/postgres"
	"github.com/englishprint/papergen/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		SchemaName:     "public",
		TableName:      "papers",
		ColumnName:     "title",
		ConstraintName: "papers_title_check",
	}
}

// MockResult implements sql.Result for testing
type MockResult struct {
	rowsAffected int64
	err          error
}

func (m MockResult) LastInsertId() (int64, error) {
	return 0, m.err
}

func (m MockResult) RowsAffected() (int64, error) {
	return m.rowsAffected, m.err
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantIs  error
		wantMsg string
	}{
		{name: "no rows", err: sql.ErrNoRows, wantIs: store.ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("query: %w", sql.ErrNoRows), wantIs: store.ErrNotFound},
		{name: "unique violation", err: newPgError("23505"), wantIs: store.ErrDuplicate},
		{
			name:    "check violation",
			err:     newPgError("23514"),
			wantIs:  store.ErrInvalidEntity,
			wantMsg: "papers_title_check",
		},
		{
			name:    "not null violation",
			err:     newPgError("23502"),
			wantIs:  store.ErrInvalidEntity,
			wantMsg: "(title)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := postgres.MapError(tt.err)
			assert.ErrorIs(t, got, tt.wantIs)
			if tt.wantMsg != "" {
				assert.Contains(t, got.Error(), tt.wantMsg)
			}
		})
	}

	assert.NoError(t, postgres.MapError(nil))

	other := errors.New("connection refused")
	assert.Equal(t, other, postgres.MapError(other), "unmapped errors are returned unchanged")

	fk := newPgError("23503")
	assert.Equal(t, error(fk), postgres.MapError(fk))
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.False(t, postgres.IsUniqueViolation(nil))
	assert.False(t, postgres.IsUniqueViolation(errors.New("generic error")))
	assert.True(t, postgres.IsUniqueViolation(newPgError("23505")))
	assert.True(t, postgres.IsUniqueViolation(fmt.Errorf("insert: %w", newPgError("23505"))))
	assert.False(t, postgres.IsUniqueViolation(newPgError("23503")))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, postgres.CheckRowsAffected(MockResult{rowsAffected: 1}, nil))

	err := postgres.CheckRowsAffected(MockResult{}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = postgres.CheckRowsAffected(MockResult{}, store.ErrPaperNotFound)
	assert.ErrorIs(t, err, store.ErrPaperNotFound)

	err = postgres.CheckRowsAffected(MockResult{err: errors.New("driver error")}, nil)
	assert.ErrorContains(t, err, "failed to get rows affected")

	assert.Error(t, postgres.CheckRowsAffected(nil, nil))
}
