package task

import (
	"time"

	"github.com/englishprint/papergen/internal/domain"
	"github.com/google/uuid"
)

// GenerationTask is one request to generate content for a paper.
type GenerationTask struct {
	ID         uuid.UUID  `json:"id"`
	PaperID    uuid.UUID  `json:"paperId"`
	PaperTitle string     `json:"paperTitle"`
	CourseID   *uuid.UUID `json:"courseId,omitempty"`
	// RetryOf links a retry to the task it replaces.
	RetryOf   *uuid.UUID `json:"retryOf,omitempty"`
	Status    Status     `json:"status"`
	StartTime time.Time  `json:"startTime"`
	// EndTime is set when the task reaches a terminal status.
	EndTime *time.Time `json:"endTime,omitempty"`
	// Error is set for error and cancelled tasks.
	Error string `json:"error,omitempty"`
	// Result is set for successful tasks.
	Result *domain.GeneratedContent `json:"result,omitempty"`

	// committing is set by the worker once it has passed its last
	// cancellation checkpoint. It is never persisted.
	committing bool
}

// NewGenerationTask creates a pending task for paper.
func NewGenerationTask(paper *domain.Paper, now time.Time) GenerationTask {
	return GenerationTask{
		ID:         uuid.New(),
		PaperID:    paper.ID,
		PaperTitle: paper.Title,
		CourseID:   paper.CourseID,
		Status:     StatusPending,
		StartTime:  now.UTC(),
	}
}

// Committing reports whether the worker is committing the task's result.
func (t GenerationTask) Committing() bool {
	return t.committing
}

// Filter selects tasks in Store.List. Zero values match everything.
type Filter struct {
	PaperID  uuid.UUID
	Statuses []Status
}

func (f Filter) matches(t GenerationTask) bool {
	if f.PaperID != uuid.Nil && t.PaperID != f.PaperID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if t.Status == s {
			return true
		}
	}
	return false
}
