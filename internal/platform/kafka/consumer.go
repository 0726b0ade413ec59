package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/englishprint/papergen/internal/task"
	"github.com/google/uuid"
	kgo "github.com/segmentio/kafka-go"
)

const commitTimeout = 3 * time.Second

// Command types accepted by CommandConsumer.
const (
	CommandEnqueue          = "enqueue"
	CommandCancel           = "cancel"
	CommandRetry            = "retry"
	CommandClear            = "clear"
	CommandSetMaxConcurrent = "set_max_concurrent"
)

// Command is the JSON body of a command message.
type Command struct {
	Type          string    `json:"type"`
	PaperID       uuid.UUID `json:"paper_id,omitempty"`
	TaskID        uuid.UUID `json:"task_id,omitempty"`
	MaxConcurrent *int      `json:"max_concurrent,omitempty"`
}

// Controller is the set of scheduler operations reachable through commands.
type Controller interface {
	Enqueue(ctx context.Context, paperID uuid.UUID) (*task.GenerationTask, error)
	Cancel(ctx context.Context, taskID uuid.UUID) (*task.GenerationTask, error)
	Retry(ctx context.Context, taskID uuid.UUID) (*task.GenerationTask, error)
	Clear(ctx context.Context, paperID uuid.UUID) (int, error)
	SetMaxConcurrent(ctx context.Context, n int) error
}

var _ Controller = (*task.Controller)(nil)

type messageReader interface {
	FetchMessage(ctx context.Context) (kgo.Message, error)
	CommitMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// CommandConsumer reads command messages and applies them to a Controller.
// Every message is committed once handled, including rejected and malformed
// ones, so a bad command never blocks the partition.
type CommandConsumer struct {
	reader     messageReader
	controller Controller
	logger     *slog.Logger
}

// NewCommandConsumer creates a consumer in group groupID reading topic.
func NewCommandConsumer(brokers []string, topic, groupID string, controller Controller, logger *slog.Logger) (*CommandConsumer, error) {
	brokers = cleanBrokers(brokers)
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, ErrNoTopic
	}
	r := kgo.NewReader(kgo.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commits
	})
	return newCommandConsumer(r, controller, logger), nil
}

func newCommandConsumer(r messageReader, controller Controller, logger *slog.Logger) *CommandConsumer {
	if controller == nil {
		panic("controller cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandConsumer{
		reader:     r,
		controller: controller,
		logger:     logger.With("component", "command_consumer"),
	}
}

// Run consumes until ctx is cancelled. It returns nil on cancellation and
// the fetch or commit error otherwise.
func (c *CommandConsumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "command consumer started")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfoContext(ctx, "command consumer stopped")
				return nil
			}
			return fmt.Errorf("failed to fetch command: %w", err)
		}

		if err := c.handle(ctx, m); err != nil {
			msg := "command rejected"
			if IsInvalidCommand(err) {
				msg = "skipping malformed command"
			}
			c.logger.WarnContext(ctx, msg,
				"offset", m.Offset,
				"partition", m.Partition,
				"error", err)
		}

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		err = c.reader.CommitMessages(cctx, m)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to commit command: %w", err)
		}
	}
}

// Close closes the underlying reader.
func (c *CommandConsumer) Close() error {
	return c.reader.Close()
}

func (c *CommandConsumer) handle(ctx context.Context, m kgo.Message) error {
	var cmd Command
	if err := json.Unmarshal(m.Value, &cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return c.Execute(ctx, cmd)
}

// Execute applies one command to the controller.
func (c *CommandConsumer) Execute(ctx context.Context, cmd Command) error {
	log := c.logger.With("command", cmd.Type)

	switch cmd.Type {
	case CommandEnqueue:
		if cmd.PaperID == uuid.Nil {
			return fmt.Errorf("%w: %s requires paper_id", ErrInvalidCommand, cmd.Type)
		}
		t, err := c.controller.Enqueue(ctx, cmd.PaperID)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "task enqueued", "task_id", t.ID, "paper_id", t.PaperID)

	case CommandCancel, CommandRetry:
		if cmd.TaskID == uuid.Nil {
			return fmt.Errorf("%w: %s requires task_id", ErrInvalidCommand, cmd.Type)
		}
		op := c.controller.Cancel
		if cmd.Type == CommandRetry {
			op = c.controller.Retry
		}
		t, err := op(ctx, cmd.TaskID)
		if err != nil {
			return err
		}
		if t != nil {
			log.InfoContext(ctx, "task updated", "task_id", t.ID, "status", t.Status)
		}

	case CommandClear:
		if cmd.PaperID == uuid.Nil {
			return fmt.Errorf("%w: %s requires paper_id", ErrInvalidCommand, cmd.Type)
		}
		n, err := c.controller.Clear(ctx, cmd.PaperID)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "tasks cleared", "paper_id", cmd.PaperID, "removed", n)

	case CommandSetMaxConcurrent:
		if cmd.MaxConcurrent == nil {
			return fmt.Errorf("%w: %s requires max_concurrent", ErrInvalidCommand, cmd.Type)
		}
		if err := c.controller.SetMaxConcurrent(ctx, *cmd.MaxConcurrent); err != nil {
			return err
		}
		log.InfoContext(ctx, "max concurrency changed", "max_concurrent", *cmd.MaxConcurrent)

	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, cmd.Type)
	}
	return nil
}

// IsInvalidCommand reports whether err came from a malformed command rather
// than a scheduler rejection.
func IsInvalidCommand(err error) bool {
	return errors.Is(err, ErrInvalidCommand)
}
