package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/englishprint/papergen/internal/events"
	"github.com/englishprint/papergen/internal/generation"
	"github.com/englishprint/papergen/internal/redact"
)

// ErrSchedulerStarted is returned by Start when the scheduler is already running.
var ErrSchedulerStarted = errors.New("scheduler already started")

// Scheduler runs the dispatch loop. Each wake-up promotes pending tasks,
// oldest first, until the concurrency limit is reached or none remain.
type Scheduler struct {
	store    *Store
	settings *Settings
	worker   *Worker
	checker  generation.ConfigChecker
	notifier *notifier
	logger   *slog.Logger

	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup
	workWG  sync.WaitGroup
	running atomic.Int64
	started atomic.Bool
}

// NewScheduler creates a Scheduler. If the worker's generator implements
// generation.ConfigChecker, its configuration is checked before every
// dispatch.
func NewScheduler(store *Store, settings *Settings, worker *Worker, emitter events.EventEmitter, logger *slog.Logger) (*Scheduler, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if worker == nil {
		return nil, errors.New("worker cannot be nil")
	}
	if settings == nil {
		return nil, errors.New("settings cannot be nil")
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	checker, _ := worker.generator.(generation.ConfigChecker)
	logger = logger.With("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:    store,
		settings: settings,
		worker:   worker,
		checker:  checker,
		notifier: newNotifier(emitter, logger),
		logger:   logger,
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start recovers the persisted task list and starts the dispatch loop.
// Tasks interrupted by a previous shutdown are reported as errors.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSchedulerStarted
	}

	interrupted, err := s.store.Load(ctx)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("failed to recover tasks: %w", err)
	}
	for _, t := range interrupted {
		s.notifier.transition(ctx, StatusProcessing, t)
	}

	s.loopWG.Add(1)
	go s.loop()

	s.RequestDispatch()
	s.logger.InfoContext(ctx, "scheduler started",
		"max_concurrent", s.settings.MaxConcurrent(),
		"interrupted_count", len(interrupted))
	return nil
}

// Stop stops the dispatch loop, cancels running generations and waits for
// the workers to record their outcome.
func (s *Scheduler) Stop() {
	s.cancel()
	s.loopWG.Wait()
	s.workWG.Wait()
	s.logger.Info("scheduler stopped")
}

// RequestDispatch asks the loop to run a dispatch pass. It never blocks;
// requests made while one is already queued are merged.
func (s *Scheduler) RequestDispatch() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Running returns the number of worker goroutines still executing. A
// cancelled task's goroutine counts until its generator call returns.
func (s *Scheduler) Running() int {
	return int(s.running.Load())
}

func (s *Scheduler) loop() {
	defer s.loopWG.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
			s.dispatch(s.ctx)
		}
	}
}

// dispatch claims and starts pending tasks until none can be claimed.
func (s *Scheduler) dispatch(ctx context.Context) {
	if s.checker != nil {
		if err := s.checker.CheckConfig(); err != nil {
			s.failPending(ctx, err)
			return
		}
	}

	for ctx.Err() == nil {
		claimed, err := s.store.ClaimNextPending(ctx, s.settings.MaxConcurrent())
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to claim pending task", "error", err)
			return
		}
		if claimed == nil {
			return
		}

		s.logger.InfoContext(ctx, "dispatching task",
			"task_id", claimed.ID,
			"paper_id", claimed.PaperID)
		s.notifier.transition(ctx, StatusPending, *claimed)

		t := *claimed
		s.workWG.Add(1)
		s.running.Add(1)
		go func() {
			defer s.workWG.Done()
			defer s.running.Add(-1)
			defer s.RequestDispatch()
			s.worker.Run(ctx, t)
		}()
	}
}

// failPending fails queued tasks when the generator cannot work at all.
func (s *Scheduler) failPending(ctx context.Context, cause error) {
	failed, err := s.store.FailPending(ctx, redact.Credentials(cause.Error()))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fail pending tasks", "error", err, "failed_count", len(failed))
	}
	if len(failed) == 0 {
		return
	}

	s.logger.ErrorContext(ctx, "generator configuration invalid, failing pending tasks",
		"error", redact.Error(cause),
		"task_count", len(failed))
	for _, t := range failed {
		s.notifier.transition(ctx, StatusPending, t)
	}
}
