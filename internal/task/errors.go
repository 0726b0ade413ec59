package task

import "errors"

// Messages stored on tasks by the scheduler itself.
const (
	// CancelledByUserMessage is the error text of a user-cancelled task.
	CancelledByUserMessage = "cancelled by user"

	// InterruptedMessage is the error text of a task found processing at startup.
	InterruptedMessage = "interrupted: process stopped while task was processing"
)

var (
	// ErrTaskNotFound is returned when no task has the given id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrActiveTaskExists is returned when the paper already has a pending or
	// processing task.
	ErrActiveTaskExists = errors.New("paper already has an active generation task")

	// ErrDuplicateTaskID is returned when inserting a task whose id is taken.
	ErrDuplicateTaskID = errors.New("duplicate task id")

	// ErrTerminalStatus is returned when a mutation would move a task out of a
	// terminal status.
	ErrTerminalStatus = errors.New("task is in a terminal status")

	// ErrPersistence wraps failures to write task state to the KV store.
	ErrPersistence = errors.New("failed to persist task state")

	// ErrTaskNotCancellable is returned when cancelling a task that is not
	// pending or processing.
	ErrTaskNotCancellable = errors.New("only pending or processing tasks can be cancelled")

	// ErrTaskCommitting is returned when cancelling a task whose result is
	// already being committed.
	ErrTaskCommitting = errors.New("task result is already being committed")

	// ErrTaskNotRetryable is returned when retrying a task in a status that
	// does not allow it.
	ErrTaskNotRetryable = errors.New("task cannot be retried in its current status")

	// ErrInvalidMaxConcurrent is returned for a negative concurrency limit.
	ErrInvalidMaxConcurrent = errors.New("max concurrent must be zero (unlimited) or positive")

	// Constructor argument errors
	ErrNilStore      = errors.New("task store cannot be nil")
	ErrNilPapers     = errors.New("paper service cannot be nil")
	ErrNilVocabulary = errors.New("vocabulary service cannot be nil")
	ErrNilGenerator  = errors.New("generator cannot be nil")
	ErrNilValidator  = errors.New("validator cannot be nil")
	ErrNilLogger     = errors.New("logger cannot be nil")
)
