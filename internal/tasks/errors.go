// Package tasks tracks and executes long-running processing tasks.
//
// A task moves pending -> running -> completed | failed | cancelled.
// For each (project_id, task_type) pair at most one task is pending or
// running at a time. Cancellation is cooperative: a running task only
// observes the request at its next step boundary, so cancellation
// latency is bounded by the duration of the currently executing step.
package tasks

import "errors"

var (
	// ErrConflict means an equivalent task is already pending or
	// running for the same project. The new request is rejected, not
	// queued.
	ErrConflict = errors.New("an equivalent task is already in progress")

	// ErrInvalidState means the requested transition is not allowed
	// from the task's current (terminal) state.
	ErrInvalidState = errors.New("task is in a terminal state")

	// ErrNotFound means no task with the given ID is known.
	ErrNotFound = errors.New("task not found")
)
