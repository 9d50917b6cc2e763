package service

import (
	"context"
	"testing"

	"github.com/docharvester/docharvester-go/internal/models"
)

func TestWikiPlanStructureCanonicalOrder(t *testing.T) {
	op := &wikiOp{
		chunksByLens: map[models.LensType][]models.DocumentChunk{
			models.LensCL:    {{Text: "changelog"}},
			models.LensLogic: {{Text: "architecture"}},
		},
	}

	if err := op.planStructure(context.Background()); err != nil {
		t.Fatalf("planStructure() error = %v", err)
	}
	if len(op.pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(op.pages))
	}
	if op.pages[0].lens != models.LensLogic || op.pages[1].lens != models.LensCL {
		t.Errorf("page order = [%s %s], want LOGIC before CL",
			op.pages[0].lens, op.pages[1].lens)
	}
	for _, page := range op.pages {
		if page.title == "" {
			t.Errorf("page for %s has empty title", page.lens)
		}
	}
}

func TestWikiResultReportsFailures(t *testing.T) {
	op := &wikiOp{
		pages:   []wikiPage{{lens: models.LensLogic}, {lens: models.LensSOP}},
		created: []string{"Core Logic"},
		failed:  map[string]string{"Procedures": "generation collaborator: timeout"},
	}

	result := op.Result()
	if result["pages_planned"] != 2 {
		t.Errorf("pages_planned = %v, want 2", result["pages_planned"])
	}
	failed, ok := result["pages_failed"].(map[string]string)
	if !ok || len(failed) != 1 {
		t.Errorf("pages_failed = %v, want one entry", result["pages_failed"])
	}
}

func TestWikiResultOmitsFailedWhenClean(t *testing.T) {
	op := &wikiOp{created: []string{"Core Logic"}}
	if _, present := op.Result()["pages_failed"]; present {
		t.Error("pages_failed should be omitted when every page rendered")
	}
}

func TestWikiOperationShape(t *testing.T) {
	svc := NewWikiService(nil, nil, &fakeGraphStore{}, nil)

	op := svc.WikiOperation("proj-1")
	if op.TaskType() != models.TaskWikiGeneration {
		t.Errorf("TaskType() = %v", op.TaskType())
	}
	want := []string{"analyzing_project", "extracting_entities", "generating_structure", "creating_pages", "finalizing"}
	steps := op.Steps()
	if len(steps) != len(want) {
		t.Fatalf("steps = %d, want %d", len(steps), len(want))
	}
	for i, name := range want {
		if steps[i].Name != name {
			t.Errorf("step %d = %q, want %q", i, steps[i].Name, name)
		}
	}
}
