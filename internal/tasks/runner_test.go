package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docharvester/docharvester-go/internal/models"
)

// fakeOp is a scriptable operation for runner tests.
type fakeOp struct {
	taskType models.TaskType
	steps    []Step
	result   map[string]any

	mu  sync.Mutex
	ran []string
}

func (o *fakeOp) TaskType() models.TaskType { return o.taskType }
func (o *fakeOp) Steps() []Step             { return o.steps }
func (o *fakeOp) Result() map[string]any    { return o.result }

func (o *fakeOp) record(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ran = append(o.ran, name)
}

func (o *fakeOp) ranSteps() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.ran...)
}

func newFakeOp(taskType models.TaskType, names ...string) *fakeOp {
	op := &fakeOp{taskType: taskType, result: map[string]any{"ok": true}}
	for _, name := range names {
		op.steps = append(op.steps, Step{Name: name, Run: func(context.Context) error {
			op.record(name)
			return nil
		}})
	}
	return op
}

func waitForTerminal(t *testing.T, task *Task) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap := task.Snapshot(); snap.Status.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", task.ID)
	return Snapshot{}
}

func TestRunnerCompletesOperation(t *testing.T) {
	tr := NewTracker(nil, nil)
	r := NewRunner(tr, 2, nil)

	op := newFakeOp(models.TaskWikiGeneration, "analyzing_project", "creating_pages", "finalizing")
	task, err := r.Submit(context.Background(), op, "proj-1", "user-1")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	snap := waitForTerminal(t, task)
	if snap.Status != models.TaskCompleted {
		t.Fatalf("expected completed, got %s (%s)", snap.Status, snap.ErrorMessage)
	}
	if snap.ProgressPercentage != 100 {
		t.Errorf("expected 100%% progress, got %v", snap.ProgressPercentage)
	}
	if snap.ResultData["ok"] != true {
		t.Errorf("expected result data, got %v", snap.ResultData)
	}

	want := []string{"analyzing_project", "creating_pages", "finalizing"}
	got := op.ranSteps()
	if len(got) != len(want) {
		t.Fatalf("expected %d steps run, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestRunnerFailureStopsRemainingSteps(t *testing.T) {
	tr := NewTracker(nil, nil)
	r := NewRunner(tr, 1, nil)

	op := newFakeOp(models.TaskEntityExtraction, "initializing")
	op.steps = append(op.steps,
		Step{Name: "processing_chunks", Run: func(context.Context) error {
			return fmt.Errorf("chunk store unavailable")
		}},
		Step{Name: "storing_entities", Run: func(context.Context) error {
			op.record("storing_entities")
			return nil
		}},
	)

	task, err := r.Submit(context.Background(), op, "proj-1", "user-1")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	snap := waitForTerminal(t, task)
	if snap.Status != models.TaskFailed {
		t.Fatalf("expected failed, got %s", snap.Status)
	}
	if snap.ErrorMessage != "chunk store unavailable" {
		t.Errorf("unexpected error message %q", snap.ErrorMessage)
	}
	for _, name := range op.ranSteps() {
		if name == "storing_entities" {
			t.Error("step after failure should not run")
		}
	}
}

func TestRunnerPanicBecomesFailure(t *testing.T) {
	tr := NewTracker(nil, nil)
	r := NewRunner(tr, 1, nil)

	op := &fakeOp{taskType: models.TaskDocumentProcessing, steps: []Step{
		{Name: "loading_document", Run: func(context.Context) error {
			panic("nil document")
		}},
	}}

	task, err := r.Submit(context.Background(), op, "proj-1", "user-1")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	snap := waitForTerminal(t, task)
	if snap.Status != models.TaskFailed {
		t.Fatalf("expected failed, got %s", snap.Status)
	}
	if snap.ErrorMessage == "" {
		t.Error("expected panic message recorded")
	}
}

func TestRunnerCancelAtStepBoundary(t *testing.T) {
	tr := NewTracker(nil, nil)
	r := NewRunner(tr, 1, nil)

	firstStarted := make(chan struct{})
	release := make(chan struct{})
	op := &fakeOp{taskType: models.TaskKnowledgeGraphRefresh}
	op.steps = []Step{
		{Name: "analyzing_documents", Run: func(context.Context) error {
			close(firstStarted)
			<-release
			return nil
		}},
		{Name: "extracting_entities", Run: func(context.Context) error {
			op.record("extracting_entities")
			return nil
		}},
	}

	ctx := context.Background()
	task, err := r.Submit(ctx, op, "proj-1", "user-1")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	<-firstStarted
	if err := tr.Cancel(ctx, task.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	close(release)

	snap := waitForTerminal(t, task)
	if snap.Status != models.TaskCancelled {
		t.Fatalf("expected cancelled, got %s", snap.Status)
	}
	if len(op.ranSteps()) != 0 {
		t.Errorf("no step after the boundary should run, got %v", op.ranSteps())
	}
}

func TestRunnerRejectsDuplicateSubmit(t *testing.T) {
	tr := NewTracker(nil, nil)
	r := NewRunner(tr, 1, nil)

	release := make(chan struct{})
	defer close(release)
	op := &fakeOp{taskType: models.TaskWikiGeneration, steps: []Step{
		{Name: "analyzing_project", Run: func(context.Context) error {
			<-release
			return nil
		}},
	}}

	ctx := context.Background()
	if _, err := r.Submit(ctx, op, "proj-1", "user-1"); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if _, err := r.Submit(ctx, op, "proj-1", "user-2"); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestRunnerShutdownWaits(t *testing.T) {
	tr := NewTracker(nil, nil)
	r := NewRunner(tr, 2, nil)

	op := newFakeOp(models.TaskDocumentProcessing, "loading_document", "storing_chunks")
	task, err := r.Submit(context.Background(), op, "proj-1", "user-1")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if got := task.Snapshot().Status; got != models.TaskCompleted {
		t.Errorf("expected completed after shutdown, got %s", got)
	}
}
