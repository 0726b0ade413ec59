package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/englishprint/papergen/internal/platform/logger"
	"github.com/englishprint/papergen/internal/store"
	"github.com/englishprint/papergen/internal/task"
)

// VocabularyStore holds the global word list.
type VocabularyStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewVocabularyStore creates a VocabularyStore. If logger is nil, the default logger is used.
func NewVocabularyStore(db store.DBTX, logger *slog.Logger) *VocabularyStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VocabularyStore{
		db:     db,
		logger: logger.With(slog.String("component", "vocabulary_store")),
	}
}

var _ task.VocabularyService = (*VocabularyStore)(nil)

// ListWords returns every word in insertion order.
func (s *VocabularyStore) ListWords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word FROM vocabulary ORDER BY created_at, word`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vocabulary: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("failed to scan word: %w", err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list vocabulary: %w", MapError(err))
	}
	return words, nil
}

// AddWords inserts words, ignoring blanks and words already present. It
// returns how many were added.
func (s *VocabularyStore) AddWords(ctx context.Context, words []string) (int, error) {
	added := 0
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO vocabulary (word) VALUES ($1) ON CONFLICT (word) DO NOTHING`, w)
		if err != nil {
			return added, fmt.Errorf("failed to add word: %w", MapError(err))
		}
		if n, err := result.RowsAffected(); err == nil {
			added += int(n)
		}
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("vocabulary updated", slog.Int("added", added))
	return added, nil
}
