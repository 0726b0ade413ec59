package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/englishprint/papergen/internal/events"
	kgo "github.com/segmentio/kafka-go"
)

const defaultWriteTimeout = 3 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// TransitionPublisher is an events.EventHandler that writes each transition
// as JSON, keyed by task id so a task's transitions stay ordered.
type TransitionPublisher struct {
	writer  messageWriter
	logger  *slog.Logger
	timeout time.Duration
}

var _ events.EventHandler = (*TransitionPublisher)(nil)

// NewTransitionPublisher creates a publisher writing to topic on brokers.
func NewTransitionPublisher(brokers []string, topic string, logger *slog.Logger) (*TransitionPublisher, error) {
	brokers = cleanBrokers(brokers)
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, ErrNoTopic
	}
	w := &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		RequiredAcks: kgo.RequireOne,
	}
	return newTransitionPublisher(w, logger), nil
}

func newTransitionPublisher(w messageWriter, logger *slog.Logger) *TransitionPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransitionPublisher{
		writer:  w,
		logger:  logger.With("component", "transition_publisher"),
		timeout: defaultWriteTimeout,
	}
}

// HandleEvent implements events.EventHandler.
func (p *TransitionPublisher) HandleEvent(ctx context.Context, event *events.TransitionEvent) error {
	if event == nil {
		return nil
	}
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode transition: %w", err)
	}

	// Transitions recorded during shutdown are still published.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(wctx, kgo.Message{
		Key:   []byte(event.TaskID.String()),
		Value: b,
		Time:  event.At,
	}); err != nil {
		p.logger.WarnContext(ctx, "failed to publish transition",
			"task_id", event.TaskID,
			"to", event.To,
			"error", err)
		return fmt.Errorf("failed to publish transition: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *TransitionPublisher) Close() error {
	return p.writer.Close()
}

func cleanBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, b := range brokers {
		for _, part := range strings.Split(b, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
