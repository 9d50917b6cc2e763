package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/docharvester/docharvester-go/internal/llm"
	"github.com/docharvester/docharvester-go/internal/models"
)

// scriptedGenerator returns a canned response keyed by a substring of
// the user prompt, or an error for prompts marked as failing.
type scriptedGenerator struct {
	responses map[string]string
	failOn    string
}

func (g *scriptedGenerator) GenerateWithSystem(_ context.Context, _, userPrompt string) (string, error) {
	if g.failOn != "" && strings.Contains(userPrompt, g.failOn) {
		return "", errors.New("model unavailable")
	}
	for key, response := range g.responses {
		if strings.Contains(userPrompt, key) {
			return response, nil
		}
	}
	return "", nil
}

// fakeGraphStore records graph writes and can reject specific targets.
type fakeGraphStore struct {
	upserts    [][]models.GraphEntity
	relations  []string
	rejectedTo string
}

func (f *fakeGraphStore) UpsertEntities(_ context.Context, _ string, entities []models.GraphEntity) error {
	f.upserts = append(f.upserts, entities)
	return nil
}

func (f *fakeGraphStore) RelateEntities(_ context.Context, _ string, from, relType, to string) error {
	if to == f.rejectedTo {
		return errors.New("target entity not found")
	}
	f.relations = append(f.relations, fmt.Sprintf("%s-%s->%s", from, relType, to))
	return nil
}

func (f *fakeGraphStore) QueryEntities(context.Context, string, string, *models.LensType) ([]models.GraphEntity, error) {
	return nil, nil
}

func lensPtr(l models.LensType) *models.LensType { return &l }

func chunkWithText(text string, lens *models.LensType) models.DocumentChunk {
	return models.DocumentChunk{Text: text, ProjectID: "proj-1", LensType: lens}
}

func TestCollectDeduplicatesEntities(t *testing.T) {
	gen := &scriptedGenerator{
		responses: map[string]string{
			"first chunk": "ENTITY|auth-service|service|handles login\n" +
				"RELATION|auth-service|user-db|depends_on|reads users",
			"second chunk": "ENTITY|auth-service|service|seen again\n" +
				"ENTITY|user-db|service|postgres instance",
		},
	}
	svc := NewEntityService(nil, llm.NewEntityExtractor(gen), &fakeGraphStore{}, nil)

	state := newExtractionState()
	state.chunks = []models.DocumentChunk{
		chunkWithText("first chunk", lensPtr(models.LensLogic)),
		chunkWithText("second chunk", lensPtr(models.LensLogic)),
	}
	svc.collect(context.Background(), "proj-1", state)

	if len(state.entities) != 2 {
		t.Fatalf("entities = %d, want 2 (auth-service deduplicated)", len(state.entities))
	}
	first, ok := state.entities["auth-service|service"]
	if !ok {
		t.Fatal("auth-service|service not collected")
	}
	if first.Description != "handles login" {
		t.Errorf("description = %q, want first occurrence kept", first.Description)
	}
	if len(state.relations) != 1 {
		t.Errorf("relations = %d, want 1", len(state.relations))
	}
	if state.failedChunks != 0 {
		t.Errorf("failedChunks = %d, want 0", state.failedChunks)
	}
}

func TestCollectSkipsUnclassifiedChunks(t *testing.T) {
	gen := &scriptedGenerator{responses: map[string]string{
		"classified": "ENTITY|billing|concept|",
	}}
	svc := NewEntityService(nil, llm.NewEntityExtractor(gen), &fakeGraphStore{}, nil)

	state := newExtractionState()
	state.chunks = []models.DocumentChunk{
		chunkWithText("unclassified text", nil),
		chunkWithText("classified text", lensPtr(models.LensGTM)),
	}
	svc.collect(context.Background(), "proj-1", state)

	if len(state.entities) != 1 {
		t.Errorf("entities = %d, want 1 (nil-lens chunk skipped)", len(state.entities))
	}
	if state.failedChunks != 0 {
		t.Errorf("failedChunks = %d, want 0 (skipped is not failed)", state.failedChunks)
	}
}

func TestCollectCountsFailedChunks(t *testing.T) {
	gen := &scriptedGenerator{
		responses: map[string]string{"good chunk": "ENTITY|pipeline|concept|"},
		failOn:    "bad chunk",
	}
	svc := NewEntityService(nil, llm.NewEntityExtractor(gen), &fakeGraphStore{}, nil)

	state := newExtractionState()
	state.chunks = []models.DocumentChunk{
		chunkWithText("bad chunk", lensPtr(models.LensLogic)),
		chunkWithText("good chunk", lensPtr(models.LensLogic)),
	}
	svc.collect(context.Background(), "proj-1", state)

	if state.failedChunks != 1 {
		t.Errorf("failedChunks = %d, want 1", state.failedChunks)
	}
	if len(state.entities) != 1 {
		t.Errorf("entities = %d, want 1 from the surviving chunk", len(state.entities))
	}
}

func TestUpsertSkipsEmptyState(t *testing.T) {
	store := &fakeGraphStore{}
	svc := NewEntityService(nil, llm.NewEntityExtractor(nil), store, nil)

	if err := svc.upsert(context.Background(), "proj-1", newExtractionState()); err != nil {
		t.Fatalf("upsert() error = %v", err)
	}
	if len(store.upserts) != 0 {
		t.Errorf("upserts = %d, want 0 for empty state", len(store.upserts))
	}
}

func TestRelateSkipsMissingEndpoints(t *testing.T) {
	store := &fakeGraphStore{rejectedTo: "ghost"}
	svc := NewEntityService(nil, llm.NewEntityExtractor(nil), store, nil)

	state := newExtractionState()
	state.relations = []llm.ExtractedRelation{
		{Source: "a", Target: "b", RelType: "depends_on"},
		{Source: "a", Target: "ghost", RelType: "references"},
		{Source: "b", Target: "c", RelType: "owns"},
	}

	created := svc.relate(context.Background(), "proj-1", state)
	if created != 2 {
		t.Errorf("relate() = %d, want 2 (missing endpoint skipped)", created)
	}
}

func TestRefreshFiltersDanglingRelations(t *testing.T) {
	op := &refreshOp{state: newExtractionState()}
	op.state.entities = map[string]models.GraphEntity{
		"a|service": {Name: "a"},
		"b|service": {Name: "b"},
	}
	op.state.relations = []llm.ExtractedRelation{
		{Source: "a", Target: "b", RelType: "depends_on"},
		{Source: "a", Target: "missing", RelType: "references"},
		{Source: "missing", Target: "b", RelType: "owns"},
	}

	if err := op.mapRelationships(context.Background()); err != nil {
		t.Fatalf("mapRelationships() error = %v", err)
	}
	if len(op.state.relations) != 1 {
		t.Fatalf("relations = %d, want 1", len(op.state.relations))
	}
	if op.state.relations[0].Target != "b" {
		t.Errorf("kept relation target = %q, want b", op.state.relations[0].Target)
	}
}

func TestExtractOperationShape(t *testing.T) {
	svc := NewEntityService(nil, llm.NewEntityExtractor(nil), &fakeGraphStore{}, nil)

	op := svc.ExtractOperation("proj-1")
	if op.TaskType() != models.TaskEntityExtraction {
		t.Errorf("TaskType() = %v", op.TaskType())
	}
	steps := op.Steps()
	want := []string{"initializing", "processing_chunks", "storing_entities", "creating_relationships"}
	if len(steps) != len(want) {
		t.Fatalf("steps = %d, want %d", len(steps), len(want))
	}
	for i, name := range want {
		if steps[i].Name != name {
			t.Errorf("step %d = %q, want %q", i, steps[i].Name, name)
		}
	}
}

func TestRefreshOperationShape(t *testing.T) {
	svc := NewEntityService(nil, llm.NewEntityExtractor(nil), &fakeGraphStore{}, nil)

	op := svc.RefreshOperation("proj-1")
	if op.TaskType() != models.TaskKnowledgeGraphRefresh {
		t.Errorf("TaskType() = %v", op.TaskType())
	}
	steps := op.Steps()
	want := []string{"analyzing_documents", "extracting_entities", "mapping_relationships", "updating_graph"}
	for i, name := range want {
		if steps[i].Name != name {
			t.Errorf("step %d = %q, want %q", i, steps[i].Name, name)
		}
	}
}
