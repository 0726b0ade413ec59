package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/englishprint/papergen/internal/domain"
	"github.com/englishprint/papergen/internal/platform/logger"
	"github.com/englishprint/papergen/internal/store"
	"github.com/englishprint/papergen/internal/task"
	"github.com/google/uuid"
)

// PaperStore reads papers for the generation worker and stores the content
// it produces.
type PaperStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewPaperStore creates a PaperStore. If logger is nil, the default logger is used.
func NewPaperStore(db store.DBTX, logger *slog.Logger) *PaperStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PaperStore{
		db:     db,
		logger: logger.With(slog.String("component", "paper_store")),
		now:    time.Now,
	}
}

var _ task.PaperService = (*PaperStore)(nil)

const paperColumns = `id, course_id, title, core_words, key_sentences, remark, content, created_at, updated_at`

// CreatePaper inserts a new paper.
func (s *PaperStore) CreatePaper(ctx context.Context, paper *domain.Paper) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if paper == nil {
		return store.ErrInvalidEntity
	}
	if err := paper.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	content, err := marshalContent(paper.Content)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO papers (` + paperColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		paper.ID,
		paper.CourseID,
		paper.Title,
		paper.CoreWords,
		paper.KeySentences,
		paper.Remark,
		content,
		paper.CreatedAt,
		paper.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create paper",
			slog.String("paper_id", paper.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Info("paper created", slog.String("paper_id", paper.ID.String()))
	return nil
}

// GetPaper returns the paper with paperID, or an error wrapping
// store.ErrPaperNotFound.
func (s *PaperStore) GetPaper(ctx context.Context, paperID uuid.UUID) (*domain.Paper, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = $1`, paperID)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.FromContextOrDefault(ctx, s.logger).Debug("paper not found",
				slog.String("paper_id", paperID.String()))
			return nil, fmt.Errorf("%w: %s", store.ErrPaperNotFound, paperID)
		}
		return nil, fmt.Errorf("failed to get paper: %w", MapError(err))
	}
	return paper, nil
}

// ListPapers returns every paper, oldest first.
func (s *PaperStore) ListPapers(ctx context.Context) ([]*domain.Paper, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+paperColumns+` FROM papers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var papers []*domain.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", MapError(err))
	}
	return papers, nil
}

// ApplyGeneratedContent replaces the paper's generated content.
func (s *PaperStore) ApplyGeneratedContent(ctx context.Context, paperID uuid.UUID, content *domain.GeneratedContent) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	data, err := marshalContent(content)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE papers SET content = $2, updated_at = $3 WHERE id = $1`,
		paperID, data, s.now().UTC())
	if err != nil {
		log.Error("failed to store generated content",
			slog.String("paper_id", paperID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to store generated content: %w", MapError(err))
	}
	if err := CheckRowsAffected(result, fmt.Errorf("%w: %s", store.ErrPaperNotFound, paperID)); err != nil {
		return err
	}

	log.Info("generated content stored", slog.String("paper_id", paperID.String()))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*domain.Paper, error) {
	var p domain.Paper
	var courseID uuid.NullUUID
	var content []byte
	if err := row.Scan(
		&p.ID,
		&courseID,
		&p.Title,
		&p.CoreWords,
		&p.KeySentences,
		&p.Remark,
		&content,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if courseID.Valid {
		id := courseID.UUID
		p.CourseID = &id
	}
	if len(content) > 0 {
		var c domain.GeneratedContent
		if err := json.Unmarshal(content, &c); err != nil {
			return nil, fmt.Errorf("failed to decode content of paper %s: %w", p.ID, err)
		}
		p.Content = &c
	}
	return &p, nil
}

func marshalContent(content *domain.GeneratedContent) ([]byte, error) {
	if content == nil {
		return nil, nil
	}
	data, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generated content: %w", err)
	}
	return data, nil
}
