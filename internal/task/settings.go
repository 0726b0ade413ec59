package task

import "sync/atomic"

// Settings holds scheduler settings that may change at runtime.
type Settings struct {
	maxConcurrent atomic.Int64
}

// NewSettings creates Settings with the given concurrency limit.
// A limit of 0 means unlimited.
func NewSettings(maxConcurrent int) (*Settings, error) {
	s := &Settings{}
	if err := s.SetMaxConcurrent(maxConcurrent); err != nil {
		return nil, err
	}
	return s, nil
}

// MaxConcurrent returns the processing limit, or 0 when unlimited.
func (s *Settings) MaxConcurrent() int {
	return int(s.maxConcurrent.Load())
}

// SetMaxConcurrent changes the processing limit. It affects the next
// dispatch decision only; running tasks are never preempted.
func (s *Settings) SetMaxConcurrent(n int) error {
	if n < 0 {
		return ErrInvalidMaxConcurrent
	}
	s.maxConcurrent.Store(int64(n))
	return nil
}
