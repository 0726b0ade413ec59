package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrNilLogger is returned by NewGenerator when logger is nil.
	ErrNilLogger = errors.New("logger cannot be nil")

	// ErrNoClient is returned by Generate when no API client could be created.
	ErrNoClient = errors.New("gemini client is not configured")
)
