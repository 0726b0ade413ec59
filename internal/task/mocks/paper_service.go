package mocks

import (
	"context"

	"github.com/englishprint/papergen/internal/domain"
	"github.com/google/uuid"
)

// PaperService is a mock implementation of task.PaperService
type PaperService struct {
	GetPaperFn              func(ctx context.Context, paperID uuid.UUID) (*domain.Paper, error)
	ListPapersFn            func(ctx context.Context) ([]*domain.Paper, error)
	ApplyGeneratedContentFn func(ctx context.Context, paperID uuid.UUID, content *domain.GeneratedContent) error
}

// GetPaper implements task.PaperService
func (m *PaperService) GetPaper(ctx context.Context, paperID uuid.UUID) (*domain.Paper, error) {
	if m.GetPaperFn != nil {
		return m.GetPaperFn(ctx, paperID)
	}
	return &domain.Paper{ID: paperID}, nil
}

// ListPapers implements task.PaperService
func (m *PaperService) ListPapers(ctx context.Context) ([]*domain.Paper, error) {
	if m.ListPapersFn != nil {
		return m.ListPapersFn(ctx)
	}
	return nil, nil
}

// ApplyGeneratedContent implements task.PaperService
func (m *PaperService) ApplyGeneratedContent(
	ctx context.Context,
	paperID uuid.UUID,
	content *domain.GeneratedContent,
) error {
	if m.ApplyGeneratedContentFn != nil {
		return m.ApplyGeneratedContentFn(ctx, paperID, content)
	}
	return nil
}

// VocabularyService is a mock implementation of task.VocabularyService
type VocabularyService struct {
	ListWordsFn func(ctx context.Context) ([]string, error)
}

// ListWords implements task.VocabularyService
func (m *VocabularyService) ListWords(ctx context.Context) ([]string, error) {
	if m.ListWordsFn != nil {
		return m.ListWordsFn(ctx)
	}
	return nil, nil
}
