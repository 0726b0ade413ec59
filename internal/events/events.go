package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StatusRemoved is the To value of a transition that deleted the task record.
const StatusRemoved = "removed"

// TransitionEvent describes one task status change. Statuses are carried as
// strings so the package has no dependency on the task package.
type TransitionEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	TaskID     uuid.UUID  `json:"task_id"`
	PaperID    uuid.UUID  `json:"paper_id"`
	PaperTitle string     `json:"paper_title"`
	RetryOf    *uuid.UUID `json:"retry_of,omitempty"`

	// From is empty when the task was just created.
	From string `json:"from,omitempty"`
	To   string `json:"to"`

	// Error is the task's error message for error and cancelled transitions.
	Error string `json:"error,omitempty"`

	// At is when the transition happened
	At time.Time `json:"at"`
}

// NewTransitionEvent creates a TransitionEvent with a fresh ID.
func NewTransitionEvent(taskID, paperID uuid.UUID, paperTitle, from, to string, at time.Time) *TransitionEvent {
	return &TransitionEvent{
		ID:         uuid.New(),
		TaskID:     taskID,
		PaperID:    paperID,
		PaperTitle: paperTitle,
		From:       from,
		To:         to,
		At:         at,
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TransitionEvent) error
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *TransitionEvent) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TransitionEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the scheduler to publish transitions without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TransitionEvent) error
}
