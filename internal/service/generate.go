package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docharvester/docharvester-go/internal/coverage"
	"github.com/docharvester/docharvester-go/internal/llm"
	"github.com/docharvester/docharvester-go/internal/metrics"
	"github.com/docharvester/docharvester-go/internal/models"
	"github.com/docharvester/docharvester-go/internal/parser"
	"github.com/docharvester/docharvester-go/internal/tasks"
)

const (
	// Confidence assigned to generated chunks; they were written for
	// the target lens, not classified into it.
	generatedConfidence = 0.85

	// Human-written context samples per lens prompt.
	maxContextChunks = 10
)

// DocumentGenerator produces a synthetic document for one lens.
// *llm.ContentGenerator implements it.
type DocumentGenerator interface {
	GenerateDocument(ctx context.Context, lens models.LensType, topic, projectName string, contextChunks []string) (string, error)
}

// CoverageChecker is the slice of the coverage service the generation
// flow depends on.
type CoverageChecker interface {
	GetStatus(ctx context.Context, projectID string) (*coverage.Report, error)
	RunCheck(ctx context.Context, projectID string) (*coverage.Report, error)
}

// GenerateStore persists generated documents and the chunk lifecycle
// around them. *db.Client implements it.
type GenerateStore interface {
	ListChunksByLens(ctx context.Context, projectID string, lens models.LensType) ([]models.DocumentChunk, error)
	CreateDocument(ctx context.Context, id, projectID, docID, title string, sourceType models.SourceType, rawText, fileType string) (*models.Document, error)
	SetDocumentText(ctx context.Context, id, text string) error
	CreateGenerationPlaceholder(ctx context.Context, id, documentID, projectID string, lens models.LensType) error
	UpdateGenerationStatus(ctx context.Context, chunkID string, status models.GenerationStatus) error
	DeleteChunk(ctx context.Context, chunkID string) error
	CreateChunks(ctx context.Context, chunks []models.ChunkInput) error
	MarkLensGenerationFailed(ctx context.Context, projectID string, lens models.LensType) error
}

// GenerateService fills coverage gaps with synthetic documents from
// the generation collaborator.
type GenerateService struct {
	db         GenerateStore
	generator  DocumentGenerator
	classifier LensClassifier
	coverage   CoverageChecker
	chunkCfg   parser.ChunkConfig
	metrics    *metrics.Collector
}

func NewGenerateService(
	store GenerateStore,
	generator DocumentGenerator,
	classifier LensClassifier,
	coverageService CoverageChecker,
	chunkCfg parser.ChunkConfig,
	collector *metrics.Collector,
) *GenerateService {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &GenerateService{
		db:         store,
		generator:  generator,
		classifier: classifier,
		coverage:   coverageService,
		chunkCfg:   chunkCfg,
		metrics:    collector,
	}
}

// generateOp generates documents for the targeted lenses, one step per
// lens plus a final coverage refresh. A lens failure is recorded and
// the remaining lenses still run.
type generateOp struct {
	svc       *GenerateService
	projectID string
	lenses    []models.LensType
	force     bool

	mu        sync.Mutex
	generated []string
	skipped   []string
	failed    map[string]string
}

func (o *generateOp) TaskType() models.TaskType { return models.TaskDocumentProcessing }

func (o *generateOp) Steps() []tasks.Step {
	steps := make([]tasks.Step, 0, len(o.lenses)+1)
	for _, lens := range o.lenses {
		steps = append(steps, tasks.Step{
			Name: "generating_" + strings.ToLower(string(lens)),
			Run: func(ctx context.Context) error {
				o.generateLens(ctx, lens)
				return nil
			},
		})
	}
	steps = append(steps, tasks.Step{Name: "updating_coverage", Run: o.updateCoverage})
	return steps
}

func (o *generateOp) Result() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := map[string]any{
		"generated": o.generated,
		"skipped":   o.skipped,
	}
	if len(o.failed) > 0 {
		result["failed"] = o.failed
	}
	return result
}

func (o *generateOp) generateLens(ctx context.Context, lens models.LensType) {
	if !o.force && o.lensComplete(ctx, lens) {
		o.mu.Lock()
		o.skipped = append(o.skipped, string(lens))
		o.mu.Unlock()
		slog.Info("lens already complete, skipping generation",
			"project_id", o.projectID, "lens", lens)
		return
	}

	if err := o.createDocument(ctx, lens); err != nil {
		slog.Warn("generation failed for lens",
			"project_id", o.projectID, "lens", lens, "error", err)
		if markErr := o.svc.db.MarkLensGenerationFailed(ctx, o.projectID, lens); markErr != nil {
			slog.Warn("failed to mark generation failure",
				"project_id", o.projectID, "lens", lens, "error", markErr)
		}
		o.mu.Lock()
		if o.failed == nil {
			o.failed = make(map[string]string)
		}
		o.failed[string(lens)] = err.Error()
		o.mu.Unlock()
		return
	}

	o.mu.Lock()
	o.generated = append(o.generated, string(lens))
	o.mu.Unlock()
}

func (o *generateOp) lensComplete(ctx context.Context, lens models.LensType) bool {
	report, err := o.svc.coverage.GetStatus(ctx, o.projectID)
	if err != nil {
		slog.Warn("coverage lookup failed before generation",
			"project_id", o.projectID, "error", err)
		return false
	}
	for _, status := range report.Statuses {
		if status.LensType == lens {
			return status.Status == models.CoverageComplete
		}
	}
	return false
}

func (o *generateOp) createDocument(ctx context.Context, lens models.LensType) error {
	// Human-written chunks of this lens anchor the prompt.
	existing, err := o.svc.db.ListChunksByLens(ctx, o.projectID, lens)
	if err != nil {
		return fmt.Errorf("load context chunks: %w", err)
	}
	var samples []string
	for _, chunk := range existing {
		if chunk.IsGenerated {
			continue
		}
		samples = append(samples, chunk.Text)
		if len(samples) >= maxContextChunks {
			break
		}
	}

	topic := llm.GeneralTopic(lens)

	// The document and a pending placeholder chunk exist before the
	// model is called; a failed attempt settles that placeholder at
	// generation_status failed instead of leaving no trace.
	docRecordID := uuid.New().String()[:8]
	docID := fmt.Sprintf("generated-%s-%s", strings.ToLower(string(lens)), docRecordID)
	title := "[Generated] " + topic
	if _, err := o.svc.db.CreateDocument(ctx, docRecordID,
		o.projectID, docID, title, models.SourceGenerated, "", "markdown"); err != nil {
		return fmt.Errorf("store generated document: %w", err)
	}

	placeholderID := docRecordID + "-p0"
	if err := o.svc.db.CreateGenerationPlaceholder(ctx, placeholderID, docRecordID, o.projectID, lens); err != nil {
		return fmt.Errorf("create placeholder chunk: %w", err)
	}
	if err := o.svc.db.UpdateGenerationStatus(ctx, placeholderID, models.GenGenerating); err != nil {
		return fmt.Errorf("mark placeholder generating: %w", err)
	}

	start := time.Now()
	text, err := o.svc.generator.GenerateDocument(ctx, lens, topic, o.projectID, samples)
	o.svc.metrics.RecordTiming(metrics.OpGenerate, time.Since(start))
	if err != nil {
		return fmt.Errorf("generation collaborator: %w", err)
	}

	if err := o.svc.db.SetDocumentText(ctx, docRecordID, text); err != nil {
		return fmt.Errorf("store generated text: %w", err)
	}

	chunks, err := parser.ChunkText(text, o.svc.chunkCfg)
	if err != nil {
		return fmt.Errorf("chunk generated text: %w", err)
	}

	inputs := make([]models.ChunkInput, len(chunks))
	for i, chunk := range chunks {
		lensCopy := lens
		confidence := generatedConfidence
		input := models.ChunkInput{
			DocumentID:       docRecordID,
			ProjectID:        o.projectID,
			ChunkIndex:       chunk.Index,
			Text:             chunk.Text,
			LensType:         &lensCopy,
			ConfidenceScore:  &confidence,
			Tokens:           chunk.Tokens,
			IsGenerated:      true,
			GenerationStatus: models.GenCompleted,
		}

		// Re-classify to confirm the lens assignment; a disagreement
		// is recorded, not acted on.
		if o.svc.classifier != nil {
			classified, classifierConf, err := o.svc.classifier.Classify(ctx, chunk.Text, title)
			if err == nil && classified != lens {
				input.Metadata = map[string]any{
					"classified_as":         string(classified),
					"classifier_confidence": classifierConf,
				}
			}
		}

		inputs[i] = input
	}
	if err := o.svc.db.CreateChunks(ctx, inputs); err != nil {
		return fmt.Errorf("store generated chunks: %w", err)
	}

	// The completed chunks supersede the placeholder.
	if err := o.svc.db.DeleteChunk(ctx, placeholderID); err != nil {
		slog.Warn("failed to remove placeholder chunk",
			"project_id", o.projectID, "chunk_id", placeholderID, "error", err)
	}

	slog.Info("generated document",
		"project_id", o.projectID, "lens", lens, "doc_id", docID, "chunks", len(chunks))
	return nil
}

func (o *generateOp) updateCoverage(ctx context.Context) error {
	if _, err := o.svc.coverage.RunCheck(ctx, o.projectID); err != nil {
		return fmt.Errorf("update coverage: %w", err)
	}
	return nil
}

// GenerateOperation builds the generation operation. An empty lenses
// slice targets every lens below complete coverage at submit time.
func (s *GenerateService) GenerateOperation(ctx context.Context, projectID string, lenses []models.LensType, force bool) (tasks.Operation, error) {
	if len(lenses) == 0 {
		report, err := s.coverage.GetStatus(ctx, projectID)
		if err != nil {
			return nil, err
		}
		for _, status := range report.Statuses {
			if status.Status != models.CoverageComplete {
				lenses = append(lenses, status.LensType)
			}
		}
	}
	for _, lens := range lenses {
		if !models.ValidLensType(lens) {
			return nil, fmt.Errorf("unknown lens type %q", lens)
		}
	}
	if len(lenses) == 0 {
		return nil, fmt.Errorf("no lenses need generation for project %s", projectID)
	}
	return &generateOp{svc: s, projectID: projectID, lenses: lenses, force: force}, nil
}
