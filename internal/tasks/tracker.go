package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docharvester/docharvester-go/internal/db"
	"github.com/docharvester/docharvester-go/internal/models"
)

// Store persists task state. *db.Client implements it; a nil Store
// keeps the tracker memory-only.
type Store interface {
	CreateTask(ctx context.Context, id string, taskType models.TaskType, projectID, userID string, totalSteps int, estimatedDuration float64) (*models.ProcessingTask, error)
	UpdateTask(ctx context.Context, id string, patch map[string]any) (*models.ProcessingTask, error)
	ListProjectTasks(ctx context.Context, projectID string, limit int) ([]models.ProcessingTask, error)
}

// Task is the live in-memory state of one processing task.
type Task struct {
	mu sync.RWMutex

	ID        string
	TaskType  models.TaskType
	Status    models.TaskStatus
	ProjectID string
	UserID    string

	ProgressPercentage float64
	CurrentStep        string
	TotalSteps         int
	CompletedSteps     int

	EstimatedDurationSeconds float64
	ElapsedTimeSeconds       float64
	RemainingTimeSeconds     *float64

	ResultData   map[string]any
	ErrorMessage string

	cancelRequested bool

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Snapshot is a thread-safe copy of a task's state for observers.
// Polling readers never block a running task.
type Snapshot struct {
	ID        string            `json:"id"`
	TaskType  models.TaskType   `json:"task_type"`
	Status    models.TaskStatus `json:"status"`
	ProjectID string            `json:"project_id"`
	UserID    string            `json:"user_id"`

	ProgressPercentage float64 `json:"progress_percentage"`
	CurrentStep        string  `json:"current_step"`
	TotalSteps         int     `json:"total_steps"`
	CompletedSteps     int     `json:"completed_steps"`

	EstimatedDurationSeconds float64  `json:"estimated_duration_seconds"`
	ElapsedTimeSeconds       float64  `json:"elapsed_time_seconds"`
	RemainingTimeSeconds     *float64 `json:"remaining_time_seconds,omitempty"`

	ResultData   map[string]any `json:"result_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`

	CancelRequested bool `json:"cancel_requested"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Snapshot returns a copy of the task's current state.
func (t *Task) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		ID:                       t.ID,
		TaskType:                 t.TaskType,
		Status:                   t.Status,
		ProjectID:                t.ProjectID,
		UserID:                   t.UserID,
		ProgressPercentage:       t.ProgressPercentage,
		CurrentStep:              t.CurrentStep,
		TotalSteps:               t.TotalSteps,
		CompletedSteps:           t.CompletedSteps,
		EstimatedDurationSeconds: t.EstimatedDurationSeconds,
		ElapsedTimeSeconds:       t.ElapsedTimeSeconds,
		RemainingTimeSeconds:     t.RemainingTimeSeconds,
		ResultData:               t.ResultData,
		ErrorMessage:             t.ErrorMessage,
		CancelRequested:          t.cancelRequested,
		StartedAt:                t.StartedAt,
		CompletedAt:              t.CompletedAt,
		CreatedAt:                t.CreatedAt,
		UpdatedAt:                t.UpdatedAt,
	}
}

// CancelRequested reports whether cancellation has been requested.
// Runners check this at step boundaries.
func (t *Task) CancelRequested() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cancelRequested
}

type activeKey struct {
	projectID string
	taskType  models.TaskType
}

// Tracker manages processing task lifecycles. It is the single writer
// of task state; the runner and API only go through it.
type Tracker struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	active map[activeKey]string // (project, type) -> task ID
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a tracker. store may be nil for memory-only use.
func NewTracker(store Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		tasks:  make(map[string]*Task),
		active: make(map[activeKey]string),
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Create registers a new pending task. Returns ErrConflict when a
// pending or running task already exists for (projectID, taskType);
// the database's transactional check-and-create backs the in-process
// index, so concurrent creates across processes cannot both win.
// A totalSteps of 0 takes the length of the task type's step plan.
func (tr *Tracker) Create(ctx context.Context, taskType models.TaskType, projectID, userID string, totalSteps int) (*Task, error) {
	if totalSteps == 0 {
		totalSteps = len(PlanSteps(taskType))
	}
	estimated := EstimatedDuration(taskType)

	key := activeKey{projectID: projectID, taskType: taskType}
	now := tr.now()

	tr.mu.Lock()
	if existingID, ok := tr.active[key]; ok {
		tr.mu.Unlock()
		return nil, fmt.Errorf("%w: task %s", ErrConflict, existingID)
	}
	task := &Task{
		ID:                       uuid.New().String()[:8], // Short ID for convenience
		TaskType:                 taskType,
		Status:                   models.TaskPending,
		ProjectID:                projectID,
		UserID:                   userID,
		TotalSteps:               totalSteps,
		EstimatedDurationSeconds: estimated,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	tr.tasks[task.ID] = task
	tr.active[key] = task.ID
	tr.mu.Unlock()

	if tr.store != nil {
		if _, err := tr.store.CreateTask(ctx, task.ID, taskType, projectID, userID, totalSteps, estimated); err != nil {
			tr.mu.Lock()
			delete(tr.tasks, task.ID)
			delete(tr.active, key)
			tr.mu.Unlock()
			if errors.Is(err, db.ErrTaskConflict) {
				return nil, fmt.Errorf("%w: %s/%s", ErrConflict, projectID, taskType)
			}
			return nil, err
		}
	}

	tr.logger.Info("task created",
		"task_id", task.ID, "task_type", taskType, "project_id", projectID, "total_steps", totalSteps)
	return task, nil
}

// Get retrieves a task by ID.
func (tr *Tracker) Get(id string) (*Task, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	task, ok := tr.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return task, nil
}

// ListActive returns snapshots of all non-terminal tasks for a
// project, most recent first. The result is a detached copy; callers
// may iterate it freely while tasks keep running.
func (tr *Tracker) ListActive(projectID string) []Snapshot {
	tr.mu.RLock()
	var tasks []*Task
	for _, t := range tr.tasks {
		tasks = append(tasks, t)
	}
	tr.mu.RUnlock()

	var out []Snapshot
	for _, t := range tasks {
		snap := t.Snapshot()
		if snap.ProjectID == projectID && !snap.Status.Terminal() {
			out = append(out, snap)
		}
	}
	slices.SortFunc(out, func(a, b Snapshot) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// History returns a project's recent tasks newest first, terminal ones
// included. With a store it reads the persisted rows and so spans
// process restarts; a memory-only tracker serves from live state.
func (tr *Tracker) History(ctx context.Context, projectID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	if tr.store != nil {
		rows, err := tr.store.ListProjectTasks(ctx, projectID, limit)
		if err != nil {
			return nil, fmt.Errorf("list project tasks: %w", err)
		}
		out := make([]Snapshot, len(rows))
		for i, row := range rows {
			out[i] = snapshotFromRecord(row)
		}
		return out, nil
	}

	tr.mu.RLock()
	var tasks []*Task
	for _, t := range tr.tasks {
		tasks = append(tasks, t)
	}
	tr.mu.RUnlock()

	var out []Snapshot
	for _, t := range tasks {
		if snap := t.Snapshot(); snap.ProjectID == projectID {
			out = append(out, snap)
		}
	}
	slices.SortFunc(out, func(a, b Snapshot) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func snapshotFromRecord(row models.ProcessingTask) Snapshot {
	snap := Snapshot{
		ID:                       models.MustRecordIDString(row.ID),
		TaskType:                 row.TaskType,
		Status:                   row.Status,
		ProjectID:                row.ProjectID,
		UserID:                   row.UserID,
		ProgressPercentage:       row.ProgressPercentage,
		CurrentStep:              row.CurrentStep,
		TotalSteps:               row.TotalSteps,
		CompletedSteps:           row.CompletedSteps,
		EstimatedDurationSeconds: row.EstimatedDurationSeconds,
		ElapsedTimeSeconds:       row.ElapsedTimeSeconds,
		RemainingTimeSeconds:     row.RemainingTimeSeconds,
		ResultData:               row.ResultData,
		CancelRequested:          row.CancelRequested,
		StartedAt:                row.StartedAt,
		CompletedAt:              row.CompletedAt,
		CreatedAt:                row.CreatedAt,
		UpdatedAt:                row.UpdatedAt,
	}
	if row.ErrorMessage != nil {
		snap.ErrorMessage = *row.ErrorMessage
	}
	return snap
}

// Start transitions a pending task to running.
func (tr *Tracker) Start(ctx context.Context, id string) error {
	task, err := tr.Get(id)
	if err != nil {
		return err
	}

	now := tr.now()
	task.mu.Lock()
	if task.Status.Terminal() {
		status := task.Status
		task.mu.Unlock()
		return fmt.Errorf("%w: cannot start %s task", ErrInvalidState, status)
	}
	task.Status = models.TaskRunning
	task.StartedAt = &now
	task.UpdatedAt = now
	task.mu.Unlock()

	tr.persist(ctx, id, map[string]any{
		"status":     string(models.TaskRunning),
		"started_at": now,
	})
	return nil
}

// Advance records step progress and recomputes the ETA by linear
// extrapolation over elapsed time.
func (tr *Tracker) Advance(ctx context.Context, id string, completedSteps int, currentStep string) error {
	task, err := tr.Get(id)
	if err != nil {
		return err
	}

	now := tr.now()
	task.mu.Lock()
	if task.Status.Terminal() {
		status := task.Status
		task.mu.Unlock()
		return fmt.Errorf("%w: cannot advance %s task", ErrInvalidState, status)
	}

	// Completed steps never exceed the plan length.
	if task.TotalSteps > 0 && completedSteps > task.TotalSteps {
		completedSteps = task.TotalSteps
	}
	task.CompletedSteps = completedSteps
	task.CurrentStep = currentStep
	if task.TotalSteps > 0 {
		task.ProgressPercentage = float64(completedSteps) / float64(task.TotalSteps) * 100
		if task.ProgressPercentage > 100 {
			task.ProgressPercentage = 100
		}
	}

	if task.StartedAt != nil {
		task.ElapsedTimeSeconds = now.Sub(*task.StartedAt).Seconds()
	}

	var remaining float64
	if task.ProgressPercentage > 0 {
		remaining = task.ElapsedTimeSeconds * (100 - task.ProgressPercentage) / task.ProgressPercentage
	} else {
		remaining = task.EstimatedDurationSeconds
	}
	task.RemainingTimeSeconds = &remaining
	task.UpdatedAt = now

	patch := map[string]any{
		"completed_steps":        completedSteps,
		"current_step":           currentStep,
		"progress_percentage":    task.ProgressPercentage,
		"elapsed_time_seconds":   task.ElapsedTimeSeconds,
		"remaining_time_seconds": remaining,
	}
	task.mu.Unlock()

	tr.persist(ctx, id, patch)
	return nil
}

// Complete transitions a task to completed with its result payload.
func (tr *Tracker) Complete(ctx context.Context, id string, result map[string]any) error {
	task, err := tr.Get(id)
	if err != nil {
		return err
	}

	now := tr.now()
	task.mu.Lock()
	if task.Status.Terminal() {
		status := task.Status
		task.mu.Unlock()
		return fmt.Errorf("%w: cannot complete %s task", ErrInvalidState, status)
	}
	task.Status = models.TaskCompleted
	task.ProgressPercentage = 100
	task.ResultData = result
	task.CompletedAt = &now
	if task.StartedAt != nil {
		task.ElapsedTimeSeconds = now.Sub(*task.StartedAt).Seconds()
	}
	zero := 0.0
	task.RemainingTimeSeconds = &zero
	task.UpdatedAt = now
	elapsed := task.ElapsedTimeSeconds
	task.mu.Unlock()

	tr.release(task)
	tr.persist(ctx, id, map[string]any{
		"status":                 string(models.TaskCompleted),
		"progress_percentage":    100.0,
		"result_data":            result,
		"completed_at":           now,
		"elapsed_time_seconds":   elapsed,
		"remaining_time_seconds": 0.0,
	})

	tr.logger.Info("task completed", "task_id", id, "task_type", task.TaskType)
	return nil
}

// Fail transitions a task to failed. Progress is left where it was.
func (tr *Tracker) Fail(ctx context.Context, id string, errMessage string) error {
	task, err := tr.Get(id)
	if err != nil {
		return err
	}

	now := tr.now()
	task.mu.Lock()
	if task.Status.Terminal() {
		status := task.Status
		task.mu.Unlock()
		return fmt.Errorf("%w: cannot fail %s task", ErrInvalidState, status)
	}
	task.Status = models.TaskFailed
	task.ErrorMessage = errMessage
	task.CompletedAt = &now
	task.UpdatedAt = now
	task.mu.Unlock()

	tr.release(task)
	tr.persist(ctx, id, map[string]any{
		"status":        string(models.TaskFailed),
		"error_message": errMessage,
		"completed_at":  now,
	})

	tr.logger.Error("task failed", "task_id", id, "task_type", task.TaskType, "error", errMessage)
	return nil
}

// Cancel requests cancellation. A pending task is cancelled
// immediately; a running task gets its flag set and transitions at the
// next step boundary. Terminal tasks report ErrInvalidState.
func (tr *Tracker) Cancel(ctx context.Context, id string) error {
	task, err := tr.Get(id)
	if err != nil {
		return err
	}

	now := tr.now()
	task.mu.Lock()
	switch {
	case task.Status.Terminal():
		status := task.Status
		task.mu.Unlock()
		return fmt.Errorf("%w: cannot cancel %s task", ErrInvalidState, status)

	case task.Status == models.TaskPending:
		task.Status = models.TaskCancelled
		task.cancelRequested = true
		task.CompletedAt = &now
		task.UpdatedAt = now
		task.mu.Unlock()

		tr.release(task)
		tr.persist(ctx, id, map[string]any{
			"status":           string(models.TaskCancelled),
			"cancel_requested": true,
			"completed_at":     now,
		})
		tr.logger.Info("pending task cancelled", "task_id", id)
		return nil

	default: // running
		task.cancelRequested = true
		task.UpdatedAt = now
		task.mu.Unlock()

		tr.persist(ctx, id, map[string]any{"cancel_requested": true})
		tr.logger.Info("cancellation requested", "task_id", id)
		return nil
	}
}

// FinishCancel completes a cooperative cancellation once the runner
// has observed the flag at a step boundary.
func (tr *Tracker) FinishCancel(ctx context.Context, id string) error {
	task, err := tr.Get(id)
	if err != nil {
		return err
	}

	now := tr.now()
	task.mu.Lock()
	if task.Status.Terminal() {
		status := task.Status
		task.mu.Unlock()
		return fmt.Errorf("%w: cannot cancel %s task", ErrInvalidState, status)
	}
	task.Status = models.TaskCancelled
	task.CompletedAt = &now
	task.UpdatedAt = now
	task.mu.Unlock()

	tr.release(task)
	tr.persist(ctx, id, map[string]any{
		"status":       string(models.TaskCancelled),
		"completed_at": now,
	})
	tr.logger.Info("task cancelled", "task_id", id)
	return nil
}

// release frees the single-flight slot after a terminal transition.
func (tr *Tracker) release(task *Task) {
	key := activeKey{projectID: task.ProjectID, taskType: task.TaskType}
	tr.mu.Lock()
	if tr.active[key] == task.ID {
		delete(tr.active, key)
	}
	tr.mu.Unlock()
}

// persist writes a patch through the store, if one is configured.
func (tr *Tracker) persist(ctx context.Context, id string, patch map[string]any) {
	if tr.store == nil {
		return
	}
	if _, err := tr.store.UpdateTask(ctx, id, patch); err != nil {
		tr.logger.Warn("failed to persist task update", "task_id", id, "error", err)
	}
}
