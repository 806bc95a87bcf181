package audit

import (
	"sync/atomic"
	"time"
)

// ReadinessState tracks whether the first catalog audit has finished.
// The service also counts as ready once the timeout has elapsed, so a slow
// store cannot hold the pod out of rotation forever.
type ReadinessState struct {
	ready     atomic.Bool
	startTime time.Time     // Immutable after construction
	timeout   time.Duration // Immutable after construction
}

// ReadinessStatus contains the current readiness state for API responses.
type ReadinessStatus struct {
	Ready          bool   `json:"ready"`
	Reason         string `json:"reason,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// NewReadinessState creates a state that is not ready until MarkReady is
// called or timeout has elapsed.
func NewReadinessState(timeout time.Duration) *ReadinessState {
	return &ReadinessState{
		startTime: time.Now(),
		timeout:   timeout,
	}
}

// IsReady reports whether the service should accept traffic.
func (s *ReadinessState) IsReady() bool {
	if s.ready.Load() {
		return true
	}
	return time.Since(s.startTime) >= s.timeout
}

// MarkReady marks the initial audit as complete.
func (s *ReadinessState) MarkReady() {
	s.ready.Store(true)
}

// AuditCompleted reports whether MarkReady was called. Unlike IsReady it
// ignores the timeout.
func (s *ReadinessState) AuditCompleted() bool {
	return s.ready.Load()
}

// Status returns the current readiness status for API responses.
func (s *ReadinessState) Status() ReadinessStatus {
	elapsed := time.Since(s.startTime)
	isReady := s.IsReady()

	status := ReadinessStatus{
		Ready:          isReady,
		ElapsedSeconds: int(elapsed.Seconds()),
		TimeoutSeconds: int(s.timeout.Seconds()),
	}

	if !isReady {
		status.Reason = "catalog audit in progress"
	} else if !s.ready.Load() {
		status.Reason = "timeout reached (audit may still be running)"
	}

	return status
}
