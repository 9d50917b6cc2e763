package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docharvester/docharvester-go/internal/db"
	"github.com/docharvester/docharvester-go/internal/graphsync"
	"github.com/docharvester/docharvester-go/internal/llm"
	"github.com/docharvester/docharvester-go/internal/metrics"
	"github.com/docharvester/docharvester-go/internal/models"
	"github.com/docharvester/docharvester-go/internal/tasks"
)

// Chunk samples fed into each wiki page prompt.
const maxPageContextChunks = 10

// WikiService produces a project wiki: one generated page per lens
// that has classified content, grounded in that lens's chunks and the
// project's graph entities.
type WikiService struct {
	db        *db.Client
	generator *llm.ContentGenerator
	graph     graphsync.Store
	metrics   *metrics.Collector
}

func NewWikiService(client *db.Client, generator *llm.ContentGenerator, graph graphsync.Store, collector *metrics.Collector) *WikiService {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &WikiService{
		db:        client,
		generator: generator,
		graph:     graph,
		metrics:   collector,
	}
}

// wikiPage is one planned page of the wiki structure.
type wikiPage struct {
	lens  models.LensType
	title string
}

type wikiOp struct {
	svc       *WikiService
	projectID string

	chunksByLens map[models.LensType][]models.DocumentChunk
	entityNames  []string
	pages        []wikiPage

	created []string
	failed  map[string]string
}

func (o *wikiOp) TaskType() models.TaskType { return models.TaskWikiGeneration }

func (o *wikiOp) Steps() []tasks.Step {
	return []tasks.Step{
		{Name: "analyzing_project", Run: o.analyze},
		{Name: "extracting_entities", Run: o.loadEntities},
		{Name: "generating_structure", Run: o.planStructure},
		{Name: "creating_pages", Run: o.createPages},
		{Name: "finalizing", Run: o.finalize},
	}
}

func (o *wikiOp) Result() map[string]any {
	result := map[string]any{
		"pages_created": o.created,
		"pages_planned": len(o.pages),
	}
	if len(o.failed) > 0 {
		result["pages_failed"] = o.failed
	}
	return result
}

func (o *wikiOp) analyze(ctx context.Context) error {
	chunks, err := o.svc.db.ListProjectChunks(ctx, o.projectID)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("project %s has no content to build a wiki from", o.projectID)
	}

	o.chunksByLens = make(map[models.LensType][]models.DocumentChunk)
	for _, chunk := range chunks {
		if chunk.LensType == nil {
			continue
		}
		o.chunksByLens[*chunk.LensType] = append(o.chunksByLens[*chunk.LensType], chunk)
	}
	if len(o.chunksByLens) == 0 {
		return fmt.Errorf("project %s has no classified chunks", o.projectID)
	}
	return nil
}

func (o *wikiOp) loadEntities(ctx context.Context) error {
	// Entity names enrich the page prompts; an empty graph is fine.
	entities, err := o.svc.graph.QueryEntities(ctx, o.projectID, "", nil)
	if err != nil {
		slog.Warn("graph lookup failed, building wiki without entities",
			"project_id", o.projectID, "error", err)
		return nil
	}
	for _, e := range entities {
		o.entityNames = append(o.entityNames, e.Name)
	}
	return nil
}

func (o *wikiOp) planStructure(context.Context) error {
	// One page per lens with content, canonical lens order.
	for _, lens := range models.AllLensTypes {
		if len(o.chunksByLens[lens]) == 0 {
			continue
		}
		o.pages = append(o.pages, wikiPage{
			lens:  lens,
			title: llm.GeneralTopic(lens),
		})
	}
	return nil
}

// createPages generates each planned page. A page failure is recorded
// and the remaining pages still render.
func (o *wikiOp) createPages(ctx context.Context) error {
	for _, page := range o.pages {
		if err := o.createPage(ctx, page); err != nil {
			slog.Warn("wiki page generation failed",
				"project_id", o.projectID, "lens", page.lens, "error", err)
			if o.failed == nil {
				o.failed = make(map[string]string)
			}
			o.failed[page.title] = err.Error()
			continue
		}
		o.created = append(o.created, page.title)
	}
	if len(o.created) == 0 {
		return fmt.Errorf("all %d wiki pages failed to generate", len(o.pages))
	}
	return nil
}

func (o *wikiOp) createPage(ctx context.Context, page wikiPage) error {
	var samples []string
	for _, chunk := range o.chunksByLens[page.lens] {
		samples = append(samples, chunk.Text)
		if len(samples) >= maxPageContextChunks {
			break
		}
	}
	if len(o.entityNames) > 0 {
		samples = append(samples, "Known entities: "+strings.Join(o.entityNames, ", "))
	}

	start := time.Now()
	text, err := o.svc.generator.GenerateDocument(ctx, page.lens, page.title, o.projectID, samples)
	o.svc.metrics.RecordTiming(metrics.OpGenerate, time.Since(start))
	if err != nil {
		return fmt.Errorf("generation collaborator: %w", err)
	}

	docRecordID := uuid.New().String()[:8]
	docID := fmt.Sprintf("wiki-%s-%s", strings.ToLower(string(page.lens)), docRecordID)
	if _, err := o.svc.db.CreateDocument(ctx, docRecordID,
		o.projectID, docID, page.title, models.SourceGenerated, text, "wiki"); err != nil {
		return fmt.Errorf("store wiki page: %w", err)
	}
	return nil
}

func (o *wikiOp) finalize(context.Context) error {
	slog.Info("wiki generation finished",
		"project_id", o.projectID, "pages_created", len(o.created), "pages_failed", len(o.failed))
	return nil
}

// WikiOperation builds the wiki_generation operation.
func (s *WikiService) WikiOperation(projectID string) tasks.Operation {
	return &wikiOp{svc: s, projectID: projectID}
}
