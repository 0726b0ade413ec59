package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/englishprint/papergen/internal/domain"
	"github.com/englishprint/papergen/internal/events"
	"github.com/englishprint/papergen/internal/generation"
	applog "github.com/englishprint/papergen/internal/platform/logger"
	"github.com/englishprint/papergen/internal/redact"
	"github.com/google/uuid"
)

// PaperService defines the paper operations the scheduler needs.
type PaperService interface {
	// GetPaper retrieves a paper by its ID. It returns an error wrapping
	// store.ErrPaperNotFound when the paper does not exist.
	GetPaper(ctx context.Context, paperID uuid.UUID) (*domain.Paper, error)

	// ListPapers returns all papers.
	ListPapers(ctx context.Context) ([]*domain.Paper, error)

	// ApplyGeneratedContent stores content on the paper.
	ApplyGeneratedContent(ctx context.Context, paperID uuid.UUID, content *domain.GeneratedContent) error
}

// VocabularyService provides the global vocabulary list.
type VocabularyService interface {
	ListWords(ctx context.Context) ([]string, error)
}

// errNotProcessing aborts an outcome update for a task that is no longer processing.
var errNotProcessing = errors.New("task is no longer processing")

const (
	defaultOutcomeAttempts = 4
	defaultOutcomeBackoff  = 250 * time.Millisecond
)

// Worker executes a single claimed task.
type Worker struct {
	store      *Store
	papers     PaperService
	vocabulary VocabularyService
	generator  generation.Generator
	validator  generation.Validator
	notifier   *notifier
	logger     *slog.Logger
	now        func() time.Time

	// outcomeAttempts and outcomeBackoff bound the writes of a task outcome.
	outcomeAttempts int
	outcomeBackoff  time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

// NewWorker creates a Worker. emitter may be nil.
func NewWorker(
	store *Store,
	papers PaperService,
	vocabulary VocabularyService,
	generator generation.Generator,
	validator generation.Validator,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*Worker, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if papers == nil {
		return nil, ErrNilPapers
	}
	if vocabulary == nil {
		return nil, ErrNilVocabulary
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if validator == nil {
		return nil, ErrNilValidator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	logger = logger.With("component", "generation_worker")
	return &Worker{
		store:      store,
		papers:     papers,
		vocabulary: vocabulary,
		generator:  generator,
		validator:  validator,
		notifier:   newNotifier(emitter, logger),
		logger:     logger,
		now:        time.Now,

		outcomeAttempts: defaultOutcomeAttempts,
		outcomeBackoff:  defaultOutcomeBackoff,
		sleep:           sleepContext,
	}, nil
}

// Run executes t, which must already be processing. All outcomes are
// recorded on the task; Run never returns an error. Store writes use a
// context detached from ctx so that outcomes are recorded during shutdown.
func (w *Worker) Run(ctx context.Context, t GenerationTask) {
	logger := w.logger.With("task_id", t.ID, "paper_id", t.PaperID)
	// Collaborators that log through the context pick up the task fields.
	ctx = applog.WithLogger(ctx, logger)
	persistCtx := context.WithoutCancel(ctx)

	// Checkpoint 1: the task may have been cancelled before it started.
	current, ok := w.store.Get(t.ID)
	if !ok || current.Status != StatusProcessing {
		logger.InfoContext(ctx, "task no longer processing, not starting", "status", current.Status)
		return
	}

	logger.InfoContext(ctx, "generating paper content")
	started := w.now()

	content, err := w.generate(ctx, current)
	if err != nil {
		logger.ErrorContext(ctx, "content generation failed",
			"error", redact.Error(err),
			"duration", w.now().Sub(started))
		w.fail(persistCtx, logger, t.ID, err.Error())
		return
	}

	// Checkpoint 2: discard the result if the task was cancelled meanwhile.
	// Past this point cancellation is refused.
	if _, ok := w.store.MarkCommitting(t.ID); !ok {
		logger.InfoContext(ctx, "task cancelled during generation, discarding result")
		return
	}

	if violations := w.validate(content); len(violations) > 0 {
		logger.WarnContext(ctx, "generated content failed validation", "violation_count", len(violations))
		w.fail(persistCtx, logger, t.ID,
			"generated content failed validation: "+strings.Join(violations, "; "))
		return
	}

	if err := w.papers.ApplyGeneratedContent(persistCtx, t.PaperID, content); err != nil {
		logger.ErrorContext(ctx, "failed to write generated content to paper", "error", redact.Error(err))
		w.fail(persistCtx, logger, t.ID, fmt.Sprintf("failed to write generated content to paper: %v", err))
		return
	}

	done, err := w.record(persistCtx, logger, t.ID, func(task *GenerationTask) error {
		if task.Status != StatusProcessing {
			return errNotProcessing
		}
		now := w.now().UTC()
		task.Status = StatusSuccess
		task.Result = content
		task.Error = ""
		task.EndTime = &now
		task.committing = false
		return nil
	})
	switch {
	case errors.Is(err, ErrPersistence):
		// The paper already holds the content; the task must still leave processing.
		w.forceError(persistCtx, logger, t.ID,
			fmt.Sprintf("generated content was written to the paper but the task result could not be recorded: %v", err))
		return
	case err != nil:
		logger.ErrorContext(ctx, "failed to record task success", "error", err)
		return
	case done == nil:
		return
	}

	logger.InfoContext(ctx, "task completed successfully", "duration", w.now().Sub(started))
	w.notifier.transition(persistCtx, StatusProcessing, *done)
}

// generate gathers inputs and calls the generator.
func (w *Worker) generate(ctx context.Context, t GenerationTask) (content *domain.GeneratedContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			content, err = nil, fmt.Errorf("generator panicked: %v", r)
		}
	}()

	paper, err := w.papers.GetPaper(ctx, t.PaperID)
	if err != nil {
		return nil, fmt.Errorf("failed to load paper: %w", err)
	}
	others, err := w.papers.ListPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	words, err := w.vocabulary.ListWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vocabulary: %w", err)
	}

	inputs := generation.BuildInputs(paper, others, words)
	content, err = w.generator.Generate(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("%w: generator returned no content", generation.ErrInvalidResponse)
	}
	return content, nil
}

func (w *Worker) validate(content *domain.GeneratedContent) (violations []string) {
	defer func() {
		if r := recover(); r != nil {
			violations = []string{fmt.Sprintf("validator panicked: %v", r)}
		}
	}()
	return w.validator.Validate(content)
}

// fail records an error on a task that is still processing. A task that
// was cancelled in the meantime keeps its cancelled record.
func (w *Worker) fail(ctx context.Context, logger *slog.Logger, id uuid.UUID, message string) {
	message = redact.Credentials(message)
	failed, err := w.record(ctx, logger, id, func(task *GenerationTask) error {
		if task.Status != StatusProcessing {
			return errNotProcessing
		}
		now := w.now().UTC()
		task.Status = StatusError
		task.Error = message
		task.Result = nil
		task.EndTime = &now
		task.committing = false
		return nil
	})
	switch {
	case errors.Is(err, errNotProcessing):
		logger.InfoContext(ctx, "task no longer processing, error not recorded")
		return
	case errors.Is(err, ErrPersistence):
		w.forceError(ctx, logger, id, message)
		return
	case err != nil:
		logger.ErrorContext(ctx, "failed to record task error", "error", err)
		return
	case failed == nil:
		return
	}

	w.notifier.transition(ctx, StatusProcessing, *failed)
}

// record applies an outcome update, retrying KV write failures with
// exponential backoff.
func (w *Worker) record(
	ctx context.Context,
	logger *slog.Logger,
	id uuid.UUID,
	mutate func(t *GenerationTask) error,
) (*GenerationTask, error) {
	delay := w.outcomeBackoff
	for attempt := 1; ; attempt++ {
		updated, err := w.store.Update(ctx, id, mutate)
		if err == nil || !errors.Is(err, ErrPersistence) || attempt >= w.outcomeAttempts {
			return updated, err
		}

		logger.WarnContext(ctx, "failed to record task outcome, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err)
		if err := w.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}
}

// forceError ends a task whose outcome could not be written, so that it
// does not hold a processing slot forever.
func (w *Worker) forceError(ctx context.Context, logger *slog.Logger, id uuid.UUID, message string) {
	forced, ok := w.store.ForceError(ctx, id, redact.Credentials(message))
	if !ok {
		return
	}
	logger.ErrorContext(ctx, "task outcome could not be persisted, task moved to error",
		"error", forced.Error,
		"attempts", w.outcomeAttempts)
	w.notifier.transition(ctx, StatusProcessing, forced)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
