package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/englishprint/papergen/internal/platform/logger"
	"github.com/englishprint/papergen/internal/store"
)

// KVStore implements store.KVStore on the kv_entries table.
type KVStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.KVStore = (*KVStore)(nil)

// NewKVStore creates a KVStore. If logger is nil, the default logger is used.
func NewKVStore(db store.DBTX, logger *slog.Logger) *KVStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{
		db:     db,
		logger: logger.With(slog.String("component", "kv_store")),
	}
}

// Get implements store.KVStore.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrKeyNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to read key",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("kv", "get", "failed to read key", MapError(err))
	}
	return value, nil
}

// Set implements store.KVStore.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to write key",
			slog.String("key", key),
			slog.Int("size", len(value)),
			slog.String("error", err.Error()))
		return store.NewStoreError("kv", "set", "failed to write key", MapError(err))
	}
	return nil
}

// Remove implements store.KVStore.
func (s *KVStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return store.NewStoreError("kv", "remove", "failed to delete key", MapError(err))
	}
	return nil
}
