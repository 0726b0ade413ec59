package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/englishprint/papergen/internal/events"
	"github.com/englishprint/papergen/internal/store"
	"github.com/google/uuid"
)

// CancelPolicy decides what cancelling a pending task does.
type CancelPolicy string

const (
	// CancelPolicyMark keeps the record as cancelled.
	CancelPolicyMark CancelPolicy = "mark"
	// CancelPolicyRemove deletes the record.
	CancelPolicyRemove CancelPolicy = "remove"
)

// Dispatcher is notified whenever capacity or the queue may have changed.
type Dispatcher interface {
	RequestDispatch()
}

// ControllerConfig holds Controller policies.
type ControllerConfig struct {
	PendingCancelPolicy CancelPolicy
	// RetryCancelled allows retrying cancelled tasks, not just failed ones.
	RetryCancelled bool
}

// Controller is the command surface of the scheduler.
type Controller struct {
	store      *Store
	papers     PaperService
	settings   *Settings
	dispatcher Dispatcher
	notifier   *notifier
	config     ControllerConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewController creates a Controller. emitter may be nil.
func NewController(
	store *Store,
	papers PaperService,
	settings *Settings,
	dispatcher Dispatcher,
	emitter events.EventEmitter,
	config ControllerConfig,
	logger *slog.Logger,
) (*Controller, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if papers == nil {
		return nil, ErrNilPapers
	}
	if settings == nil || dispatcher == nil {
		return nil, fmt.Errorf("settings and dispatcher are required")
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if config.PendingCancelPolicy == "" {
		config.PendingCancelPolicy = CancelPolicyMark
	}

	logger = logger.With("component", "task_controller")
	return &Controller{
		store:      store,
		papers:     papers,
		settings:   settings,
		dispatcher: dispatcher,
		notifier:   newNotifier(emitter, logger),
		config:     config,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Enqueue creates a pending task for the paper and triggers a dispatch.
func (c *Controller) Enqueue(ctx context.Context, paperID uuid.UUID) (*GenerationTask, error) {
	return c.create(ctx, paperID, nil)
}

// Cancel cancels a pending or processing task. A pending task never runs;
// depending on the policy its record is kept as cancelled or removed. A
// processing task is marked cancelled at once and its result is discarded
// when the generator returns.
func (c *Controller) Cancel(ctx context.Context, taskID uuid.UUID) (*GenerationTask, error) {
	current, ok := c.store.Get(taskID)
	if !ok {
		return nil, ErrTaskNotFound
	}

	if current.Status == StatusPending && c.config.PendingCancelPolicy == CancelPolicyRemove {
		removed, err := c.store.RemoveIf(ctx, func(t GenerationTask) bool {
			return t.ID == taskID && t.Status == StatusPending
		})
		if err != nil {
			return nil, err
		}
		if len(removed) == 1 {
			c.logger.InfoContext(ctx, "pending task cancelled and removed", "task_id", taskID)
			c.notifier.removed(ctx, removed[0])
			c.dispatcher.RequestDispatch()
			return &removed[0], nil
		}
		// Claimed in the meantime; cancel it as a processing task.
	}

	var from Status
	cancelled, err := c.store.Update(ctx, taskID, func(t *GenerationTask) error {
		if !t.Status.IsActive() {
			return fmt.Errorf("%w: task is %s", ErrTaskNotCancellable, t.Status)
		}
		if t.committing {
			return ErrTaskCommitting
		}
		from = t.Status
		now := c.now().UTC()
		t.Status = StatusCancelled
		t.Error = CancelledByUserMessage
		t.EndTime = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cancelled == nil {
		return nil, ErrTaskNotFound
	}

	c.logger.InfoContext(ctx, "task cancelled", "task_id", taskID, "previous_status", from)
	c.notifier.transition(ctx, from, *cancelled)
	c.dispatcher.RequestDispatch()
	return cancelled, nil
}

// Retry creates a new pending task for the paper of a failed task. The
// original task is left untouched.
func (c *Controller) Retry(ctx context.Context, taskID uuid.UUID) (*GenerationTask, error) {
	original, ok := c.store.Get(taskID)
	if !ok {
		return nil, ErrTaskNotFound
	}

	retryable := original.Status == StatusError ||
		(original.Status == StatusCancelled && c.config.RetryCancelled)
	if !retryable {
		return nil, fmt.Errorf("%w: task is %s", ErrTaskNotRetryable, original.Status)
	}

	return c.create(ctx, original.PaperID, &original.ID)
}

// Clear removes the paper's finished tasks and returns how many were
// removed. Active tasks are kept.
func (c *Controller) Clear(ctx context.Context, paperID uuid.UUID) (int, error) {
	removed, err := c.store.RemoveIf(ctx, func(t GenerationTask) bool {
		return t.PaperID == paperID && t.Status.IsTerminal()
	})
	if err != nil {
		return 0, err
	}
	for _, t := range removed {
		c.notifier.removed(ctx, t)
	}
	if len(removed) > 0 {
		c.logger.InfoContext(ctx, "cleared finished tasks", "paper_id", paperID, "count", len(removed))
	}
	return len(removed), nil
}

// Task returns the task with id.
func (c *Controller) Task(id uuid.UUID) (GenerationTask, bool) {
	return c.store.Get(id)
}

// LatestForPaper returns the paper's most recently started task.
func (c *Controller) LatestForPaper(paperID uuid.UUID) (GenerationTask, bool) {
	return c.store.FindLatestByPaper(paperID)
}

// Tasks lists tasks matching f, oldest first.
func (c *Controller) Tasks(f Filter) []GenerationTask {
	return c.store.List(f)
}

// MaxConcurrent returns the current processing limit, 0 meaning unlimited.
func (c *Controller) MaxConcurrent() int {
	return c.settings.MaxConcurrent()
}

// SetMaxConcurrent changes the processing limit and triggers a dispatch.
func (c *Controller) SetMaxConcurrent(ctx context.Context, n int) error {
	if err := c.settings.SetMaxConcurrent(n); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "max concurrent changed", "max_concurrent", n)
	c.dispatcher.RequestDispatch()
	return nil
}

func (c *Controller) create(ctx context.Context, paperID uuid.UUID, retryOf *uuid.UUID) (*GenerationTask, error) {
	paper, err := c.papers.GetPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up paper %s: %w", paperID, err)
	}
	if paper == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrPaperNotFound, paperID)
	}

	t := NewGenerationTask(paper, c.now())
	t.RetryOf = retryOf
	if err := c.store.Insert(ctx, t); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "task enqueued",
		"task_id", t.ID,
		"paper_id", t.PaperID,
		"retry_of", retryOf)
	c.notifier.transition(ctx, "", t)
	c.dispatcher.RequestDispatch()
	return &t, nil
}
