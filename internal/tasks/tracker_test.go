package tasks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/docharvester/docharvester-go/internal/db"
	"github.com/docharvester/docharvester-go/internal/models"
)

// fakeClock lets tests control elapsed time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingStore captures persistence calls without a database.
type recordingStore struct {
	mu        sync.Mutex
	createErr error
	patches   []map[string]any
	history   []models.ProcessingTask
}

func (s *recordingStore) CreateTask(_ context.Context, id string, taskType models.TaskType, projectID, userID string, totalSteps int, estimatedDuration float64) (*models.ProcessingTask, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &models.ProcessingTask{TaskType: taskType, ProjectID: projectID, UserID: userID}, nil
}

func (s *recordingStore) UpdateTask(_ context.Context, id string, patch map[string]any) (*models.ProcessingTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, patch)
	return &models.ProcessingTask{}, nil
}

func (s *recordingStore) ListProjectTasks(_ context.Context, projectID string, limit int) ([]models.ProcessingTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProcessingTask
	for _, row := range s.history {
		if row.ProjectID == projectID {
			out = append(out, row)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func newTestTracker() (*Tracker, *fakeClock) {
	clock := newFakeClock()
	tr := NewTracker(nil, nil)
	tr.now = clock.Now
	return tr, clock
}

func TestCreateSingleFlight(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	first, err := tr.Create(ctx, models.TaskWikiGeneration, "proj-1", "user-1", 0)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if first.TotalSteps != len(PlanSteps(models.TaskWikiGeneration)) {
		t.Errorf("expected total steps from plan, got %d", first.TotalSteps)
	}

	if _, err := tr.Create(ctx, models.TaskWikiGeneration, "proj-1", "user-1", 0); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate, got %v", err)
	}

	// Different task type and different project are not blocked.
	if _, err := tr.Create(ctx, models.TaskEntityExtraction, "proj-1", "user-1", 0); err != nil {
		t.Errorf("different task type blocked: %v", err)
	}
	if _, err := tr.Create(ctx, models.TaskWikiGeneration, "proj-2", "user-1", 0); err != nil {
		t.Errorf("different project blocked: %v", err)
	}

	// Terminal transition frees the slot.
	if err := tr.Start(ctx, first.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := tr.Complete(ctx, first.ID, nil); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := tr.Create(ctx, models.TaskWikiGeneration, "proj-1", "user-1", 0); err != nil {
		t.Errorf("create after completion failed: %v", err)
	}
}

func TestCreateConcurrent(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = tr.Create(ctx, models.TaskDocumentProcessing, "proj-race", "user-1", 0)
		}()
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
}

func TestCreateStoreConflict(t *testing.T) {
	store := &recordingStore{createErr: fmt.Errorf("query failed: %w", db.ErrTaskConflict)}
	tr := NewTracker(store, nil)
	ctx := context.Background()

	if _, err := tr.Create(ctx, models.TaskWikiGeneration, "proj-1", "user-1", 0); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict from store, got %v", err)
	}

	// The failed task must not linger in the in-process index.
	store.createErr = nil
	if _, err := tr.Create(ctx, models.TaskWikiGeneration, "proj-1", "user-1", 0); err != nil {
		t.Errorf("retry after store conflict failed: %v", err)
	}
}

func TestAdvanceProgress(t *testing.T) {
	tr, clock := newTestTracker()
	ctx := context.Background()

	task, err := tr.Create(ctx, models.TaskEntityExtraction, "proj-1", "user-1", 4)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := tr.Start(ctx, task.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	clock.Advance(60 * time.Second)
	if err := tr.Advance(ctx, task.ID, 3, "storing_entities"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	snap := task.Snapshot()
	if snap.ProgressPercentage != 75 {
		t.Errorf("expected 75%% progress, got %v", snap.ProgressPercentage)
	}
	if snap.ElapsedTimeSeconds != 60 {
		t.Errorf("expected 60s elapsed, got %v", snap.ElapsedTimeSeconds)
	}
	if snap.RemainingTimeSeconds == nil {
		t.Fatal("expected remaining time estimate")
	}
	if math.Abs(*snap.RemainingTimeSeconds-20) > 0.001 {
		t.Errorf("expected 20s remaining, got %v", *snap.RemainingTimeSeconds)
	}
	if snap.CurrentStep != "storing_entities" {
		t.Errorf("unexpected current step %q", snap.CurrentStep)
	}
}

func TestAdvanceZeroProgressFallsBackToEstimate(t *testing.T) {
	tr, clock := newTestTracker()
	ctx := context.Background()

	task, _ := tr.Create(ctx, models.TaskWikiGeneration, "proj-1", "user-1", 5)
	if err := tr.Start(ctx, task.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	clock.Advance(10 * time.Second)
	if err := tr.Advance(ctx, task.ID, 0, "analyzing_project"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	snap := task.Snapshot()
	if snap.RemainingTimeSeconds == nil {
		t.Fatal("expected remaining time estimate")
	}
	if *snap.RemainingTimeSeconds != snap.EstimatedDurationSeconds {
		t.Errorf("expected estimated duration %v as fallback, got %v",
			snap.EstimatedDurationSeconds, *snap.RemainingTimeSeconds)
	}
}

func TestAdvanceClampsStepOverrun(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	task, _ := tr.Create(ctx, models.TaskEntityExtraction, "proj-1", "user-1", 4)
	if err := tr.Start(ctx, task.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := tr.Advance(ctx, task.ID, 7, "storing_entities"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	snap := task.Snapshot()
	if snap.CompletedSteps != 4 {
		t.Errorf("expected completed steps clamped to 4, got %d", snap.CompletedSteps)
	}
	if snap.ProgressPercentage != 100 {
		t.Errorf("expected 100%% progress, got %v", snap.ProgressPercentage)
	}
}

func TestTerminalTransitionsRejected(t *testing.T) {
	ctx := context.Background()

	terminalVia := map[string]func(tr *Tracker, id string) error{
		"completed": func(tr *Tracker, id string) error {
			if err := tr.Start(ctx, id); err != nil {
				return err
			}
			return tr.Complete(ctx, id, nil)
		},
		"failed": func(tr *Tracker, id string) error {
			if err := tr.Start(ctx, id); err != nil {
				return err
			}
			return tr.Fail(ctx, id, "boom")
		},
		"cancelled": func(tr *Tracker, id string) error {
			return tr.Cancel(ctx, id)
		},
	}

	for name, makeTerminal := range terminalVia {
		t.Run(name, func(t *testing.T) {
			tr, _ := newTestTracker()
			task, err := tr.Create(ctx, models.TaskWikiGeneration, "proj-1", "user-1", 3)
			if err != nil {
				t.Fatalf("create failed: %v", err)
			}
			if err := makeTerminal(tr, task.ID); err != nil {
				t.Fatalf("setup failed: %v", err)
			}

			if err := tr.Start(ctx, task.ID); !errors.Is(err, ErrInvalidState) {
				t.Errorf("start: expected ErrInvalidState, got %v", err)
			}
			if err := tr.Advance(ctx, task.ID, 1, "x"); !errors.Is(err, ErrInvalidState) {
				t.Errorf("advance: expected ErrInvalidState, got %v", err)
			}
			if err := tr.Complete(ctx, task.ID, nil); !errors.Is(err, ErrInvalidState) {
				t.Errorf("complete: expected ErrInvalidState, got %v", err)
			}
			if err := tr.Fail(ctx, task.ID, "late"); !errors.Is(err, ErrInvalidState) {
				t.Errorf("fail: expected ErrInvalidState, got %v", err)
			}
			if err := tr.Cancel(ctx, task.ID); !errors.Is(err, ErrInvalidState) {
				t.Errorf("cancel: expected ErrInvalidState, got %v", err)
			}
		})
	}
}

func TestCancelPendingImmediate(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	task, _ := tr.Create(ctx, models.TaskKnowledgeGraphRefresh, "proj-1", "user-1", 0)
	if err := tr.Cancel(ctx, task.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	snap := task.Snapshot()
	if snap.Status != models.TaskCancelled {
		t.Errorf("expected cancelled, got %s", snap.Status)
	}
	if snap.CompletedAt == nil {
		t.Error("expected completed_at on cancelled task")
	}

	// The slot is free again.
	if _, err := tr.Create(ctx, models.TaskKnowledgeGraphRefresh, "proj-1", "user-1", 0); err != nil {
		t.Errorf("create after cancel failed: %v", err)
	}
}

func TestCancelRunningIsCooperative(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	task, _ := tr.Create(ctx, models.TaskDocumentProcessing, "proj-1", "user-1", 4)
	if err := tr.Start(ctx, task.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := tr.Cancel(ctx, task.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// Still running; only the flag is set.
	snap := task.Snapshot()
	if snap.Status != models.TaskRunning {
		t.Errorf("expected running, got %s", snap.Status)
	}
	if !task.CancelRequested() {
		t.Error("expected cancel_requested flag")
	}

	if err := tr.FinishCancel(ctx, task.ID); err != nil {
		t.Fatalf("finish cancel failed: %v", err)
	}
	if got := task.Snapshot().Status; got != models.TaskCancelled {
		t.Errorf("expected cancelled, got %s", got)
	}
}

func TestFailRecordsError(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	task, _ := tr.Create(ctx, models.TaskWikiGeneration, "proj-1", "user-1", 5)
	if err := tr.Start(ctx, task.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := tr.Advance(ctx, task.ID, 2, "generating_structure"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if err := tr.Fail(ctx, task.ID, "llm unavailable"); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	snap := task.Snapshot()
	if snap.Status != models.TaskFailed {
		t.Errorf("expected failed, got %s", snap.Status)
	}
	if snap.ErrorMessage != "llm unavailable" {
		t.Errorf("unexpected error message %q", snap.ErrorMessage)
	}
	// Progress stays where it was.
	if snap.ProgressPercentage != 40 {
		t.Errorf("expected progress preserved at 40%%, got %v", snap.ProgressPercentage)
	}
}

func TestListActive(t *testing.T) {
	tr, clock := newTestTracker()
	ctx := context.Background()

	older, _ := tr.Create(ctx, models.TaskWikiGeneration, "proj-1", "user-1", 0)
	clock.Advance(time.Second)
	newer, _ := tr.Create(ctx, models.TaskEntityExtraction, "proj-1", "user-1", 0)
	clock.Advance(time.Second)
	done, _ := tr.Create(ctx, models.TaskDocumentProcessing, "proj-1", "user-1", 0)
	tr.Create(ctx, models.TaskWikiGeneration, "proj-other", "user-1", 0)

	if err := tr.Start(ctx, done.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := tr.Complete(ctx, done.ID, nil); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	active := tr.ListActive("proj-1")
	if len(active) != 2 {
		t.Fatalf("expected 2 active tasks, got %d", len(active))
	}
	if active[0].ID != newer.ID || active[1].ID != older.ID {
		t.Errorf("expected newest first, got %s then %s", active[0].ID, active[1].ID)
	}
}

func TestHistoryMemoryOnly(t *testing.T) {
	tr, clock := newTestTracker()
	ctx := context.Background()

	older, _ := tr.Create(ctx, models.TaskWikiGeneration, "proj-1", "user-1", 0)
	clock.Advance(time.Second)
	done, _ := tr.Create(ctx, models.TaskDocumentProcessing, "proj-1", "user-1", 0)
	tr.Create(ctx, models.TaskWikiGeneration, "proj-other", "user-1", 0)

	if err := tr.Start(ctx, done.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := tr.Complete(ctx, done.ID, nil); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	history, err := tr.History(ctx, "proj-1", 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 tasks including the completed one, got %d", len(history))
	}
	if history[0].ID != done.ID || history[1].ID != older.ID {
		t.Errorf("expected newest first, got %s then %s", history[0].ID, history[1].ID)
	}
	if history[0].Status != models.TaskCompleted {
		t.Errorf("expected completed status preserved, got %s", history[0].Status)
	}

	limited, err := tr.History(ctx, "proj-1", 1)
	if err != nil {
		t.Fatalf("limited history failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit applied, got %d tasks", len(limited))
	}
}

func TestHistoryFromStore(t *testing.T) {
	errMsg := "step storing_entities: model unavailable"
	store := &recordingStore{history: []models.ProcessingTask{{
		ID:                 surrealmodels.RecordID{Table: "processing_task", ID: "abc12345"},
		TaskType:           models.TaskEntityExtraction,
		Status:             models.TaskFailed,
		ProjectID:          "proj-1",
		UserID:             "user-1",
		ProgressPercentage: 40,
		TotalSteps:         5,
		CompletedSteps:     2,
		ErrorMessage:       &errMsg,
	}}}
	tr := NewTracker(store, nil)

	history, err := tr.History(context.Background(), "proj-1", 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 task, got %d", len(history))
	}
	snap := history[0]
	if snap.ID != "abc12345" {
		t.Errorf("expected record id flattened to string, got %q", snap.ID)
	}
	if snap.Status != models.TaskFailed || snap.ErrorMessage != errMsg {
		t.Errorf("row not mapped: status=%s error=%q", snap.Status, snap.ErrorMessage)
	}
}

func TestPersistence(t *testing.T) {
	store := &recordingStore{}
	tr := NewTracker(store, nil)
	ctx := context.Background()

	task, err := tr.Create(ctx, models.TaskWikiGeneration, "proj-1", "user-1", 2)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := tr.Start(ctx, task.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := tr.Complete(ctx, task.ID, map[string]any{"pages": 3}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.patches) != 2 {
		t.Fatalf("expected 2 persisted patches, got %d", len(store.patches))
	}
	if store.patches[0]["status"] != string(models.TaskRunning) {
		t.Errorf("first patch should set running, got %v", store.patches[0]["status"])
	}
	if store.patches[1]["status"] != string(models.TaskCompleted) {
		t.Errorf("second patch should set completed, got %v", store.patches[1]["status"])
	}
}

func TestGetUnknownTask(t *testing.T) {
	tr, _ := newTestTracker()
	if _, err := tr.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
