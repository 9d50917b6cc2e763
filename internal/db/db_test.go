// Package db provides integration tests for SurrealDB operations.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/docharvester/docharvester-go/internal/models"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func newProjectID() string {
	return "proj-" + uuid.New().String()[:8]
}

func newTaskID() string {
	return uuid.New().String()[:8]
}

// =============================================================================
// TASK TESTS
// =============================================================================

func TestCreateTask(t *testing.T) {
	ctx := context.Background()
	project := newProjectID()

	task, err := testDB.CreateTask(ctx, newTaskID(), models.TaskWikiGeneration, project, "user1", 5, 140)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if task.Status != models.TaskPending {
		t.Errorf("Expected status pending, got %q", task.Status)
	}
	if task.TaskType != models.TaskWikiGeneration {
		t.Errorf("Expected task_type wiki_generation, got %q", task.TaskType)
	}
	if task.TotalSteps != 5 {
		t.Errorf("Expected total_steps 5, got %v", task.TotalSteps)
	}
	if task.ProgressPercentage != 0 {
		t.Errorf("Expected progress 0, got %v", task.ProgressPercentage)
	}
}

func TestCreateTask_Conflict(t *testing.T) {
	ctx := context.Background()
	project := newProjectID()

	if _, err := testDB.CreateTask(ctx, newTaskID(), models.TaskEntityExtraction, project, "user1", 0, 100); err != nil {
		t.Fatalf("first CreateTask failed: %v", err)
	}

	_, err := testDB.CreateTask(ctx, newTaskID(), models.TaskEntityExtraction, project, "user1", 0, 100)
	if !errors.Is(err, ErrTaskConflict) {
		t.Errorf("Expected ErrTaskConflict, got %v", err)
	}

	// A different task type is not blocked.
	if _, err := testDB.CreateTask(ctx, newTaskID(), models.TaskWikiGeneration, project, "user1", 0, 100); err != nil {
		t.Errorf("different task_type blocked: %v", err)
	}
}

func TestCreateTask_ConcurrentSingleFlight(t *testing.T) {
	ctx := context.Background()
	project := newProjectID()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = testDB.CreateTask(ctx, newTaskID(), models.TaskKnowledgeGraphRefresh, project, "user1", 0, 100)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrTaskConflict) && !errors.Is(err, ErrTransactionConflict) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("Expected exactly 1 successful create, got %d", succeeded)
	}
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	project := newProjectID()

	task, err := testDB.CreateTask(ctx, newTaskID(), models.TaskDocumentProcessing, project, "user1", 0, 100)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	id := models.MustRecordIDString(task.ID)
	updated, err := testDB.UpdateTask(ctx, id, map[string]any{
		"status":              string(models.TaskRunning),
		"current_step":        "chunking",
		"completed_steps":     1,
		"progress_percentage": 25.0,
		"started_at":          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	if updated.Status != models.TaskRunning {
		t.Errorf("Expected status running, got %q", updated.Status)
	}
	if updated.CurrentStep != "chunking" {
		t.Errorf("Expected current_step chunking, got %v", updated.CurrentStep)
	}
	if updated.ProgressPercentage != 25 {
		t.Errorf("Expected progress 25, got %v", updated.ProgressPercentage)
	}
}

func TestUpdateTask_NotFound(t *testing.T) {
	ctx := context.Background()

	_, err := testDB.UpdateTask(ctx, "no-such-task", map[string]any{"status": "running"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListActiveTasks(t *testing.T) {
	ctx := context.Background()
	project := newProjectID()

	active, err := testDB.CreateTask(ctx, newTaskID(), models.TaskWikiGeneration, project, "user1", 0, 100)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	done, err := testDB.CreateTask(ctx, newTaskID(), models.TaskEntityExtraction, project, "user1", 0, 100)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	// Terminate one task; it must drop out of the active list.
	if _, err := testDB.UpdateTask(ctx, models.MustRecordIDString(done.ID), map[string]any{
		"status": string(models.TaskCompleted),
	}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}

	tasks, err := testDB.ListActiveTasks(ctx, project)
	if err != nil {
		t.Fatalf("ListActiveTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 active task, got %d", len(tasks))
	}
	if tasks[0].ID != active.ID {
		t.Errorf("Expected active task %v, got %v", active.ID, tasks[0].ID)
	}

	all, err := testDB.ListProjectTasks(ctx, project, 10)
	if err != nil {
		t.Fatalf("ListProjectTasks failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 project tasks, got %d", len(all))
	}
}

// =============================================================================
// COVERAGE TESTS
// =============================================================================

func TestUpsertRequirement(t *testing.T) {
	ctx := context.Background()
	project := newProjectID()

	req, err := testDB.UpsertRequirement(ctx, project, models.LensLogic, true, 10)
	if err != nil {
		t.Fatalf("UpsertRequirement failed: %v", err)
	}
	if req.MinDocuments != 10 || !req.IsRequired {
		t.Errorf("Unexpected requirement: %+v", req)
	}

	// Updating the same pair must not create a second row.
	if _, err := testDB.UpsertRequirement(ctx, project, models.LensLogic, true, 3); err != nil {
		t.Fatalf("second UpsertRequirement failed: %v", err)
	}

	reqs, err := testDB.ListRequirements(ctx, project)
	if err != nil {
		t.Fatalf("ListRequirements failed: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 requirement, got %d", len(reqs))
	}
	if reqs[0].MinDocuments != 3 {
		t.Errorf("Expected min_documents 3 after update, got %d", reqs[0].MinDocuments)
	}
}

func TestReplaceCoverageStatuses(t *testing.T) {
	ctx := context.Background()
	project := newProjectID()

	first := []models.CoverageStatus{
		{ProjectID: project, LensType: models.LensLogic, Status: models.CoverageMissing, MissingTopics: []string{"a", "b"}, LastChecked: time.Now().UTC()},
		{ProjectID: project, LensType: models.LensSOP, Status: models.CoveragePartial, CoveragePercentage: 40, LastChecked: time.Now().UTC()},
	}
	if err := testDB.ReplaceCoverageStatuses(ctx, project, first); err != nil {
		t.Fatalf("ReplaceCoverageStatuses failed: %v", err)
	}

	second := []models.CoverageStatus{
		{ProjectID: project, LensType: models.LensLogic, Status: models.CoverageComplete, CoveragePercentage: 100, LastChecked: time.Now().UTC()},
	}
	if err := testDB.ReplaceCoverageStatuses(ctx, project, second); err != nil {
		t.Fatalf("second ReplaceCoverageStatuses failed: %v", err)
	}

	statuses, err := testDB.ListCoverageStatuses(ctx, project)
	if err != nil {
		t.Fatalf("ListCoverageStatuses failed: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("Expected snapshot to be replaced wholesale, got %d rows", len(statuses))
	}
	if statuses[0].Status != models.CoverageComplete {
		t.Errorf("Expected complete, got %q", statuses[0].Status)
	}
}

// =============================================================================
// DOCUMENT TESTS
// =============================================================================

func TestCreateDocumentAndChunks(t *testing.T) {
	ctx := context.Background()
	project := newProjectID()

	doc, err := testDB.CreateDocument(ctx, newTaskID(), project, "doc-"+uuid.New().String()[:8],
		"Test Document", models.SourceUpload, "some raw text", "txt")
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	docID := models.MustRecordIDString(doc.ID)
	lens := models.LensLogic
	conf := 0.9
	chunks := []models.ChunkInput{
		{DocumentID: docID, ProjectID: project, ChunkIndex: 0, Text: "first chunk", LensType: &lens, ConfidenceScore: &conf, Tokens: 3},
		{DocumentID: docID, ProjectID: project, ChunkIndex: 1, Text: "second chunk", Tokens: 3},
	}
	if err := testDB.CreateChunks(ctx, chunks); err != nil {
		t.Fatalf("CreateChunks failed: %v", err)
	}

	stored, err := testDB.ListProjectChunks(ctx, project)
	if err != nil {
		t.Fatalf("ListProjectChunks failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(stored))
	}
	if stored[0].ChunkIndex != 0 || stored[1].ChunkIndex != 1 {
		t.Errorf("Chunks out of order: %d, %d", stored[0].ChunkIndex, stored[1].ChunkIndex)
	}
	if stored[0].LensType == nil || *stored[0].LensType != models.LensLogic {
		t.Errorf("Expected first chunk classified LOGIC, got %v", stored[0].LensType)
	}
	if stored[1].LensType != nil {
		t.Errorf("Expected second chunk unclassified, got %v", stored[1].LensType)
	}

	byLens, err := testDB.ListChunksByLens(ctx, project, models.LensLogic)
	if err != nil {
		t.Fatalf("ListChunksByLens failed: %v", err)
	}
	if len(byLens) != 1 {
		t.Errorf("Expected 1 LOGIC chunk, got %d", len(byLens))
	}

	count, err := testDB.CountProjectDocuments(ctx, project)
	if err != nil {
		t.Fatalf("CountProjectDocuments failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 document, got %d", count)
	}
}

func TestGenerationPlaceholderLifecycle(t *testing.T) {
	ctx := context.Background()
	project := newProjectID()

	doc, err := testDB.CreateDocument(ctx, newTaskID(), project, "doc-"+uuid.New().String()[:8],
		"[Generated] SOP", models.SourceGenerated, "", "markdown")
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	docID := models.MustRecordIDString(doc.ID)

	placeholderID := docID + "-p0"
	if err := testDB.CreateGenerationPlaceholder(ctx, placeholderID, docID, project, models.LensSOP); err != nil {
		t.Fatalf("CreateGenerationPlaceholder failed: %v", err)
	}

	stored, err := testDB.ListProjectChunks(ctx, project)
	if err != nil || len(stored) != 1 {
		t.Fatalf("ListProjectChunks: %v (%d chunks)", err, len(stored))
	}
	if stored[0].GenerationStatus != models.GenPending {
		t.Errorf("Expected pending placeholder, got %v", stored[0].GenerationStatus)
	}
	if !stored[0].IsGenerated {
		t.Error("Placeholder should be flagged as generated")
	}

	if err := testDB.UpdateGenerationStatus(ctx, placeholderID, models.GenGenerating); err != nil {
		t.Fatalf("UpdateGenerationStatus failed: %v", err)
	}

	// A failed attempt settles every pending or generating placeholder
	// for the lens at failed.
	if err := testDB.MarkLensGenerationFailed(ctx, project, models.LensSOP); err != nil {
		t.Fatalf("MarkLensGenerationFailed failed: %v", err)
	}
	after, err := testDB.ListProjectChunks(ctx, project)
	if err != nil || len(after) != 1 {
		t.Fatalf("ListProjectChunks: %v (%d chunks)", err, len(after))
	}
	if after[0].GenerationStatus != models.GenFailed {
		t.Errorf("Expected failed placeholder, got %v", after[0].GenerationStatus)
	}

	// Completed chunks are untouched by a later failure mark, and the
	// placeholder can be removed once they exist.
	lens := models.LensSOP
	conf := 0.85
	if err := testDB.CreateChunks(ctx, []models.ChunkInput{
		{DocumentID: docID, ProjectID: project, ChunkIndex: 0, Text: "generated body",
			LensType: &lens, ConfidenceScore: &conf, Tokens: 3,
			IsGenerated: true, GenerationStatus: models.GenCompleted},
	}); err != nil {
		t.Fatalf("CreateChunks failed: %v", err)
	}
	if err := testDB.MarkLensGenerationFailed(ctx, project, models.LensSOP); err != nil {
		t.Fatalf("MarkLensGenerationFailed failed: %v", err)
	}
	if err := testDB.DeleteChunk(ctx, placeholderID); err != nil {
		t.Fatalf("DeleteChunk failed: %v", err)
	}

	final, err := testDB.ListProjectChunks(ctx, project)
	if err != nil {
		t.Fatalf("ListProjectChunks failed: %v", err)
	}
	if len(final) != 1 {
		t.Fatalf("Expected only the completed chunk, got %d", len(final))
	}
	if final[0].GenerationStatus != models.GenCompleted {
		t.Errorf("Completed chunk status changed: %v", final[0].GenerationStatus)
	}
}

// =============================================================================
// GRAPH TESTS
// =============================================================================

func TestGraphEntities(t *testing.T) {
	ctx := context.Background()
	project := newProjectID()

	lens := models.LensLogic
	entities := []models.GraphEntity{
		{Name: "Billing Service", Type: "system", Description: "handles invoices", LensType: &lens},
		{Name: "Invoice", Type: "concept"},
	}
	if err := testDB.UpsertGraphEntities(ctx, project, entities); err != nil {
		t.Fatalf("UpsertGraphEntities failed: %v", err)
	}

	// Upserting the same names again must not duplicate.
	if err := testDB.UpsertGraphEntities(ctx, project, entities); err != nil {
		t.Fatalf("second UpsertGraphEntities failed: %v", err)
	}

	all, err := testDB.QueryGraphEntities(ctx, project, "", nil)
	if err != nil {
		t.Fatalf("QueryGraphEntities failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 entities, got %d", len(all))
	}

	systems, err := testDB.QueryGraphEntities(ctx, project, "system", nil)
	if err != nil {
		t.Fatalf("QueryGraphEntities(system) failed: %v", err)
	}
	if len(systems) != 1 || systems[0].Name != "Billing Service" {
		t.Errorf("Unexpected system entities: %+v", systems)
	}

	if err := testDB.RelateGraphEntities(ctx, project, "Billing Service", "manages", "Invoice"); err != nil {
		t.Errorf("RelateGraphEntities failed: %v", err)
	}

	err = testDB.RelateGraphEntities(ctx, project, "Billing Service", "manages", "Nonexistent")
	if err == nil {
		t.Error("Expected error relating to missing entity")
	}
}
