package task

// Status represents the current state of a generation task.
type Status string

// Possible task status values
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSuccess, StatusError, StatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether a task in this status still occupies its paper.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusProcessing
}

// IsTerminal reports whether s is a final status. Terminal statuses never change.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCancelled
}
