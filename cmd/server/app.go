package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/englishprint/papergen/internal/config"
	"github.com/englishprint/papergen/internal/events"
	"github.com/englishprint/papergen/internal/generation"
	"github.com/englishprint/papergen/internal/platform/dify"
	"github.com/englishprint/papergen/internal/platform/dynamo"
	"github.com/englishprint/papergen/internal/platform/gemini"
	"github.com/englishprint/papergen/internal/platform/kafka"
	"github.com/englishprint/papergen/internal/platform/ollama"
	"github.com/englishprint/papergen/internal/platform/postgres"
	"github.com/englishprint/papergen/internal/store"
	"github.com/englishprint/papergen/internal/task"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// application holds the wired components and releases them on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	addr   string

	db         *sql.DB
	kv         store.KVStore
	papers     task.PaperService
	vocabulary task.VocabularyService
	generator  generation.Generator

	emitter   *events.InMemoryEventEmitter
	publisher *kafka.TransitionPublisher
	consumer  *kafka.CommandConsumer

	tasks      *task.Store
	settings   *task.Settings
	scheduler  *task.Scheduler
	controller *task.Controller
}

// newApplication wires every component from cfg. Nothing is started.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *application, err error) {
	app := &application{
		config: cfg,
		logger: logger,
		addr:   fmt.Sprintf(":%d", cfg.Server.Port),
	}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	if err := app.setupPapers(ctx); err != nil {
		return nil, err
	}
	if err := app.setupPersistence(ctx); err != nil {
		return nil, err
	}

	app.generator, err = newGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s generator: %w", cfg.LLM.Provider, err)
	}
	if checker, ok := app.generator.(generation.ConfigChecker); ok {
		if err := checker.CheckConfig(); err != nil {
			logger.WarnContext(ctx, "generator is not configured, queued tasks will fail", "error", err)
		}
	}

	if err := app.setupEvents(); err != nil {
		return nil, err
	}
	if err := app.setupScheduler(); err != nil {
		return nil, err
	}

	if cfg.Events.CommandTopic != "" {
		app.consumer, err = kafka.NewCommandConsumer(
			cfg.Events.KafkaBrokers,
			cfg.Events.CommandTopic,
			cfg.Events.GroupID,
			app.controller,
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create command consumer: %w", err)
		}
	}

	logger.InfoContext(ctx, "application initialized")
	return app, nil
}

// setupPapers connects to postgres when a database URL is configured.
// Without one, papers and vocabulary live in memory.
func (app *application) setupPapers(ctx context.Context) error {
	if app.config.Database.URL == "" {
		app.logger.WarnContext(ctx, "no database configured, papers are kept in memory")
		papers := store.NewMemoryPaperStore()
		app.papers = papers
		app.vocabulary = papers
		return nil
	}

	db, err := postgres.Open(ctx, app.config.Database.URL, app.logger)
	if err != nil {
		return err
	}
	app.db = db

	if err := postgres.Migrate(ctx, db, app.logger); err != nil {
		return err
	}
	app.papers = postgres.NewPaperStore(db, app.logger)
	app.vocabulary = postgres.NewVocabularyStore(db, app.logger)
	return nil
}

// setupPersistence selects the KV backend the task list is written to.
func (app *application) setupPersistence(ctx context.Context) error {
	switch app.config.Persistence.Driver {
	case "postgres":
		if app.db == nil {
			return errors.New("postgres persistence requires database.url")
		}
		app.kv = postgres.NewKVStore(app.db, app.logger)
	case "dynamodb":
		client, err := dynamo.NewClient(ctx, app.config.Dynamo)
		if err != nil {
			return err
		}
		kv, err := dynamo.NewKVStore(client, app.config.Dynamo.Table, app.logger)
		if err != nil {
			return err
		}
		app.kv = kv
	case "memory":
		app.logger.WarnContext(ctx, "task list is kept in memory and lost on restart")
		app.kv = store.NewMemoryKV()
	default:
		return fmt.Errorf("unknown persistence driver %q", app.config.Persistence.Driver)
	}
	app.logger.InfoContext(ctx, "task persistence selected",
		"driver", app.config.Persistence.Driver,
		"key", app.config.Persistence.Key)
	return nil
}

// newGenerator builds the configured generation backend.
func newGenerator(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Generator, error) {
	switch cfg.Provider {
	case "dify":
		return dify.NewClient(cfg.Dify, logger, nil)
	case "gemini":
		return gemini.NewGenerator(ctx, logger, cfg)
	case "ollama":
		return ollama.NewGenerator(logger, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
}

func (app *application) setupEvents() error {
	app.emitter = events.NewInMemoryEventEmitter(app.logger)

	transitions := app.logger.With("component", "transition_log")
	app.emitter.RegisterHandler(events.HandlerFunc(func(ctx context.Context, e *events.TransitionEvent) error {
		transitions.DebugContext(ctx, "task transition",
			"task_id", e.TaskID,
			"paper_id", e.PaperID,
			"from", e.From,
			"to", e.To)
		return nil
	}))

	if !app.config.Events.KafkaEnabled() {
		return nil
	}
	publisher, err := kafka.NewTransitionPublisher(
		app.config.Events.KafkaBrokers,
		app.config.Events.TransitionTopic,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create transition publisher: %w", err)
	}
	app.publisher = publisher
	app.emitter.RegisterHandler(publisher)
	return nil
}

func (app *application) setupScheduler() error {
	var err error
	app.tasks, err = task.NewStore(app.kv, app.config.Persistence.Key, app.logger)
	if err != nil {
		return err
	}
	app.settings, err = task.NewSettings(app.config.Task.MaxConcurrent)
	if err != nil {
		return err
	}

	worker, err := task.NewWorker(
		app.tasks,
		app.papers,
		app.vocabulary,
		app.generator,
		generation.NewContentValidator(),
		app.emitter,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	app.scheduler, err = task.NewScheduler(app.tasks, app.settings, worker, app.emitter, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	app.controller, err = task.NewController(
		app.tasks,
		app.papers,
		app.settings,
		app.scheduler,
		app.emitter,
		task.ControllerConfig{
			PendingCancelPolicy: task.CancelPolicy(app.config.Task.PendingCancelPolicy),
			RetryCancelled:      app.config.Task.RetryCancelled,
		},
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	return nil
}

// Run starts the scheduler, the HTTP server and the command consumer, and
// blocks until ctx is cancelled or one of them fails. Resources are released
// before Run returns.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.scheduler.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              app.addr,
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})
	if app.consumer != nil {
		g.Go(func() error {
			return app.consumer.Run(gctx)
		})
	}

	return g.Wait()
}

// cleanup stops the scheduler and closes connections. It is safe to call on
// a partially initialized application.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.consumer != nil {
		if err := app.consumer.Close(); err != nil {
			app.logger.Error("error closing command consumer", "error", err)
		}
	}
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Error("error closing transition publisher", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
