package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/docharvester/docharvester-go/internal/models"
)

// Step is one unit of work within an operation. Cancellation is only
// observed between steps, so each Run should be reasonably bounded.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Operation is a multi-step unit of background work.
type Operation interface {
	TaskType() models.TaskType
	Steps() []Step
	// Result is collected after all steps succeed.
	Result() map[string]any
}

// Runner executes operations on a bounded worker pool, reporting
// progress through the tracker.
type Runner struct {
	tracker *Tracker
	logger  *slog.Logger
	sem     chan struct{}
	wg      sync.WaitGroup
}

// NewRunner creates a runner with at most workers concurrent
// operations. A workers value below 1 is treated as 1.
func NewRunner(tracker *Tracker, workers int, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		tracker: tracker,
		logger:  logger,
		sem:     make(chan struct{}, workers),
	}
}

// Submit creates a task for op and starts it in the background.
// Returns ErrConflict when an equivalent task is already in flight.
func (r *Runner) Submit(ctx context.Context, op Operation, projectID, userID string) (*Task, error) {
	steps := op.Steps()
	task, err := r.tracker.Create(ctx, op.TaskType(), projectID, userID, len(steps))
	if err != nil {
		return nil, err
	}

	r.wg.Add(1)
	go r.run(task.ID, op, steps)

	return task, nil
}

func (r *Runner) run(taskID string, op Operation, steps []Step) {
	defer r.wg.Done()

	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	// Background tasks outlive the submitting request.
	ctx := context.Background()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("task panicked", "task_id", taskID, "panic", rec)
			if err := r.tracker.Fail(ctx, taskID, fmt.Sprintf("internal error: %v", rec)); err != nil {
				r.logger.Warn("failed to record panic", "task_id", taskID, "error", err)
			}
		}
	}()

	task, err := r.tracker.Get(taskID)
	if err != nil {
		r.logger.Warn("task vanished before start", "task_id", taskID, "error", err)
		return
	}
	// Cancelled while waiting for a worker slot.
	if task.Snapshot().Status.Terminal() {
		return
	}

	if err := r.tracker.Start(ctx, taskID); err != nil {
		r.logger.Warn("failed to start task", "task_id", taskID, "error", err)
		return
	}

	for i, step := range steps {
		if task.CancelRequested() {
			if err := r.tracker.FinishCancel(ctx, taskID); err != nil {
				r.logger.Warn("failed to finish cancellation", "task_id", taskID, "error", err)
			}
			return
		}

		if err := r.tracker.Advance(ctx, taskID, i, step.Name); err != nil {
			r.logger.Warn("failed to advance task", "task_id", taskID, "error", err)
		}

		if err := step.Run(ctx); err != nil {
			if failErr := r.tracker.Fail(ctx, taskID, err.Error()); failErr != nil {
				r.logger.Warn("failed to record step failure", "task_id", taskID, "error", failErr)
			}
			return
		}

		if err := r.tracker.Advance(ctx, taskID, i+1, step.Name); err != nil {
			r.logger.Warn("failed to advance task", "task_id", taskID, "error", err)
		}
	}

	if err := r.tracker.Complete(ctx, taskID, op.Result()); err != nil {
		r.logger.Warn("failed to complete task", "task_id", taskID, "error", err)
	}
}

// Shutdown waits for in-flight operations to finish or ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
