package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docharvester/docharvester-go/internal/db"
	"github.com/docharvester/docharvester-go/internal/graphsync"
	"github.com/docharvester/docharvester-go/internal/llm"
	"github.com/docharvester/docharvester-go/internal/metrics"
	"github.com/docharvester/docharvester-go/internal/models"
	"github.com/docharvester/docharvester-go/internal/tasks"
)

// EntityService mirrors chunk-level entities and relations into the
// knowledge graph through the graph-sync collaborator.
type EntityService struct {
	db        *db.Client
	extractor *llm.EntityExtractor
	graph     graphsync.Store
	metrics   *metrics.Collector
}

func NewEntityService(client *db.Client, extractor *llm.EntityExtractor, graph graphsync.Store, collector *metrics.Collector) *EntityService {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &EntityService{
		db:        client,
		extractor: extractor,
		graph:     graph,
		metrics:   collector,
	}
}

// extractionState accumulates results across an operation's steps.
type extractionState struct {
	chunks       []models.DocumentChunk
	entities     map[string]models.GraphEntity // keyed name|type
	relations    []llm.ExtractedRelation
	failedChunks int
}

func newExtractionState() *extractionState {
	return &extractionState{entities: make(map[string]models.GraphEntity)}
}

// collect extracts entities and relations from every classified chunk.
// Per-chunk extraction failures are counted and absorbed.
func (s *EntityService) collect(ctx context.Context, projectID string, state *extractionState) {
	for _, chunk := range state.chunks {
		if chunk.LensType == nil {
			continue
		}

		start := time.Now()
		entities, relations, err := s.extractor.Extract(ctx, chunk.Text, *chunk.LensType)
		s.metrics.RecordTiming(metrics.OpExtract, time.Since(start))
		if err != nil {
			state.failedChunks++
			slog.Warn("entity extraction failed for chunk",
				"project_id", projectID, "chunk_index", chunk.ChunkIndex, "error", err)
			continue
		}

		for _, e := range entities {
			key := e.Name + "|" + e.Type
			if _, seen := state.entities[key]; seen {
				continue
			}
			state.entities[key] = models.GraphEntity{
				ProjectID:   projectID,
				Name:        e.Name,
				Type:        e.Type,
				Description: e.Description,
				LensType:    chunk.LensType,
			}
		}
		state.relations = append(state.relations, relations...)
	}
}

func (s *EntityService) upsert(ctx context.Context, projectID string, state *extractionState) error {
	if len(state.entities) == 0 {
		return nil
	}
	entities := make([]models.GraphEntity, 0, len(state.entities))
	for _, e := range state.entities {
		entities = append(entities, e)
	}
	if err := s.graph.UpsertEntities(ctx, projectID, entities); err != nil {
		return fmt.Errorf("upsert entities: %w", err)
	}
	return nil
}

// relate creates graph edges. A relation whose endpoints were never
// extracted fails individually and is skipped.
func (s *EntityService) relate(ctx context.Context, projectID string, state *extractionState) int {
	var created int
	for _, rel := range state.relations {
		if err := s.graph.RelateEntities(ctx, projectID, rel.Source, rel.RelType, rel.Target); err != nil {
			slog.Debug("skipping relation with missing endpoint",
				"project_id", projectID, "source", rel.Source, "target", rel.Target, "error", err)
			continue
		}
		created++
	}
	return created
}

// extractOp is the entity_extraction operation.
type extractOp struct {
	svc       *EntityService
	projectID string

	state            *extractionState
	relationsCreated int
}

func (o *extractOp) TaskType() models.TaskType { return models.TaskEntityExtraction }

func (o *extractOp) Steps() []tasks.Step {
	return []tasks.Step{
		{Name: "initializing", Run: o.initialize},
		{Name: "processing_chunks", Run: o.process},
		{Name: "storing_entities", Run: o.storeEntities},
		{Name: "creating_relationships", Run: o.createRelationships},
	}
}

func (o *extractOp) Result() map[string]any {
	return map[string]any{
		"entities_found":    len(o.state.entities),
		"relations_created": o.relationsCreated,
		"chunks_processed":  len(o.state.chunks),
		"chunks_failed":     o.state.failedChunks,
	}
}

func (o *extractOp) initialize(ctx context.Context) error {
	o.state = newExtractionState()
	chunks, err := o.svc.db.ListProjectChunks(ctx, o.projectID)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("project %s has no chunks to extract from", o.projectID)
	}
	o.state.chunks = chunks
	return nil
}

func (o *extractOp) process(ctx context.Context) error {
	o.svc.collect(ctx, o.projectID, o.state)
	return nil
}

func (o *extractOp) storeEntities(ctx context.Context) error {
	return o.svc.upsert(ctx, o.projectID, o.state)
}

func (o *extractOp) createRelationships(ctx context.Context) error {
	o.relationsCreated = o.svc.relate(ctx, o.projectID, o.state)
	return nil
}

// ExtractOperation builds the entity_extraction operation.
func (s *EntityService) ExtractOperation(projectID string) tasks.Operation {
	return &extractOp{svc: s, projectID: projectID}
}

// refreshOp is the knowledge_graph_refresh operation: a full re-read
// of the project's chunks followed by a graph rebuild.
type refreshOp struct {
	svc       *EntityService
	projectID string

	state            *extractionState
	documentCount    int
	relationsCreated int
}

func (o *refreshOp) TaskType() models.TaskType { return models.TaskKnowledgeGraphRefresh }

func (o *refreshOp) Steps() []tasks.Step {
	return []tasks.Step{
		{Name: "analyzing_documents", Run: o.analyze},
		{Name: "extracting_entities", Run: o.extract},
		{Name: "mapping_relationships", Run: o.mapRelationships},
		{Name: "updating_graph", Run: o.updateGraph},
	}
}

func (o *refreshOp) Result() map[string]any {
	return map[string]any{
		"documents_analyzed": o.documentCount,
		"entities_found":     len(o.state.entities),
		"relations_created":  o.relationsCreated,
		"chunks_failed":      o.state.failedChunks,
	}
}

func (o *refreshOp) analyze(ctx context.Context) error {
	o.state = newExtractionState()

	count, err := o.svc.db.CountProjectDocuments(ctx, o.projectID)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	o.documentCount = count

	chunks, err := o.svc.db.ListProjectChunks(ctx, o.projectID)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	o.state.chunks = chunks
	return nil
}

func (o *refreshOp) extract(ctx context.Context) error {
	o.svc.collect(ctx, o.projectID, o.state)
	return nil
}

func (o *refreshOp) mapRelationships(context.Context) error {
	// Relations referencing entities outside the extracted set are
	// dropped here rather than failing later against the store.
	names := make(map[string]bool, len(o.state.entities))
	for _, e := range o.state.entities {
		names[e.Name] = true
	}
	kept := o.state.relations[:0]
	for _, rel := range o.state.relations {
		if names[rel.Source] && names[rel.Target] {
			kept = append(kept, rel)
		}
	}
	o.state.relations = kept
	return nil
}

func (o *refreshOp) updateGraph(ctx context.Context) error {
	if err := o.svc.upsert(ctx, o.projectID, o.state); err != nil {
		return err
	}
	o.relationsCreated = o.svc.relate(ctx, o.projectID, o.state)
	return nil
}

// RefreshOperation builds the knowledge_graph_refresh operation.
func (s *EntityService) RefreshOperation(projectID string) tasks.Operation {
	return &refreshOp{svc: s, projectID: projectID}
}
