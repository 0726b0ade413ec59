package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/englishprint/papergen/internal/events"
)

// notifier publishes task transitions. Emission failures are logged and
// never affect task state.
type notifier struct {
	emitter events.EventEmitter
	logger  *slog.Logger
}

func newNotifier(emitter events.EventEmitter, logger *slog.Logger) *notifier {
	return &notifier{emitter: emitter, logger: logger}
}

// transition reports that t moved from the given status to t.Status. An
// empty from means t was just created.
func (n *notifier) transition(ctx context.Context, from Status, t GenerationTask) {
	n.emit(ctx, string(from), string(t.Status), t)
}

// removed reports that t was deleted from the store.
func (n *notifier) removed(ctx context.Context, t GenerationTask) {
	n.emit(ctx, string(t.Status), events.StatusRemoved, t)
}

func (n *notifier) emit(ctx context.Context, from, to string, t GenerationTask) {
	if n == nil || n.emitter == nil {
		return
	}

	event := events.NewTransitionEvent(t.ID, t.PaperID, t.PaperTitle, from, to, time.Now().UTC())
	event.RetryOf = t.RetryOf
	event.Error = t.Error

	if err := n.emitter.EmitEvent(ctx, event); err != nil {
		n.logger.WarnContext(ctx, "failed to publish task transition",
			"error", err,
			"task_id", t.ID,
			"from", from,
			"to", to)
	}
}
