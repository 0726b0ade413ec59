package generation

import "errors"

// Common errors returned by the generation package and its backends.
var (
	// ErrInvalidConfig is returned when the generator configuration is
	// missing or unusable. Tasks fail with this before they are dispatched.
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrTransport is returned when the workflow endpoint cannot be reached
	// or answers with a non-success HTTP status.
	ErrTransport = errors.New("generation transport failure")

	// ErrWorkflowFailed is returned when the workflow ran but reported failure.
	ErrWorkflowFailed = errors.New("generation workflow failed")

	// ErrInvalidResponse is returned when the output cannot be parsed or is malformed.
	ErrInvalidResponse = errors.New("invalid response from generation workflow")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry.
	ErrTransientFailure = errors.New("transient error during content generation")

	// ErrEmptyInputs is returned when there is nothing to generate from.
	ErrEmptyInputs = errors.New("generation inputs are empty")
)
