package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/englishprint/papergen/internal/domain"
	"github.com/google/uuid"
)

// MemoryPaperStore keeps papers and the global vocabulary in process memory.
// It backs the "memory" persistence driver when no database is configured.
type MemoryPaperStore struct {
	mu     sync.RWMutex
	papers map[uuid.UUID]*domain.Paper
	words  []string
	seen   map[string]struct{}
}

// NewMemoryPaperStore creates an empty MemoryPaperStore.
func NewMemoryPaperStore() *MemoryPaperStore {
	return &MemoryPaperStore{
		papers: make(map[uuid.UUID]*domain.Paper),
		seen:   make(map[string]struct{}),
	}
}

// CreatePaper stores a copy of paper. ErrDuplicate is returned for a known id.
func (m *MemoryPaperStore) CreatePaper(_ context.Context, paper *domain.Paper) error {
	if paper == nil {
		return ErrInvalidEntity
	}
	if err := paper.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.papers[paper.ID]; ok {
		return fmt.Errorf("%w: paper %s", ErrDuplicate, paper.ID)
	}
	cp := *paper
	m.papers[paper.ID] = &cp
	return nil
}

// GetPaper returns a copy of the paper or an error wrapping ErrPaperNotFound.
func (m *MemoryPaperStore) GetPaper(_ context.Context, paperID uuid.UUID) (*domain.Paper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.papers[paperID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotFound, paperID)
	}
	cp := *p
	return &cp, nil
}

// ListPapers returns copies of all papers ordered by creation time.
func (m *MemoryPaperStore) ListPapers(_ context.Context) ([]*domain.Paper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Paper, 0, len(m.papers))
	for _, p := range m.papers {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ApplyGeneratedContent sets the paper's content.
func (m *MemoryPaperStore) ApplyGeneratedContent(_ context.Context, paperID uuid.UUID, content *domain.GeneratedContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.papers[paperID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPaperNotFound, paperID)
	}
	p.ApplyContent(content, time.Now())
	return nil
}

// ListWords returns the vocabulary in insertion order.
func (m *MemoryPaperStore) ListWords(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.words...), nil
}

// AddWords appends words not already present and returns how many were added.
func (m *MemoryPaperStore) AddWords(_ context.Context, words []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, w := range words {
		if w == "" {
			continue
		}
		if _, ok := m.seen[w]; ok {
			continue
		}
		m.seen[w] = struct{}{}
		m.words = append(m.words, w)
		added++
	}
	return added, nil
}
