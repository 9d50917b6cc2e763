// Package service wires the storage, LLM, and coverage layers into
// the operations the task runner executes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docharvester/docharvester-go/internal/db"
	"github.com/docharvester/docharvester-go/internal/llm"
	"github.com/docharvester/docharvester-go/internal/metrics"
	"github.com/docharvester/docharvester-go/internal/models"
	"github.com/docharvester/docharvester-go/internal/parser"
	"github.com/docharvester/docharvester-go/internal/tasks"
)

// LensClassifier assigns a lens and confidence to a piece of text.
type LensClassifier interface {
	Classify(ctx context.Context, text, projectContext string) (models.LensType, float64, error)
}

// DocumentService ingests raw document text: chunk, classify, embed,
// store, then refresh the project's coverage snapshot.
type DocumentService struct {
	db         *db.Client
	classifier LensClassifier
	embedder   *llm.Embedder // optional
	coverage   *CoverageService
	chunkCfg   parser.ChunkConfig
	metrics    *metrics.Collector
}

func NewDocumentService(
	client *db.Client,
	classifier LensClassifier,
	embedder *llm.Embedder,
	coverageService *CoverageService,
	chunkCfg parser.ChunkConfig,
	collector *metrics.Collector,
) *DocumentService {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &DocumentService{
		db:         client,
		classifier: classifier,
		embedder:   embedder,
		coverage:   coverageService,
		chunkCfg:   chunkCfg,
		metrics:    collector,
	}
}

// DocumentInput is the raw material for one processing run. Text is
// already extracted; file parsing happens upstream.
type DocumentInput struct {
	ProjectID string
	DocID     string
	Title     string
	Text      string
	FileType  string
}

// classifiedChunk pairs a text chunk with its classification outcome.
type classifiedChunk struct {
	chunk      parser.Chunk
	lens       *models.LensType
	confidence *float64
	embedding  []float32
}

// processOp is the document_processing operation. Steps share state
// through the struct; the runner executes them serially.
type processOp struct {
	svc   *DocumentService
	input DocumentInput

	chunks       []classifiedChunk
	unclassified int
	documentID   string
}

func (o *processOp) TaskType() models.TaskType { return models.TaskDocumentProcessing }

func (o *processOp) Steps() []tasks.Step {
	return []tasks.Step{
		{Name: "loading_document", Run: o.load},
		{Name: "chunking_and_classifying", Run: o.chunkAndClassify},
		{Name: "storing_chunks", Run: o.store},
		{Name: "updating_coverage", Run: o.updateCoverage},
	}
}

func (o *processOp) Result() map[string]any {
	return map[string]any{
		"document_id":         o.documentID,
		"doc_id":              o.input.DocID,
		"chunks_created":      len(o.chunks),
		"unclassified_chunks": o.unclassified,
	}
}

func (o *processOp) load(context.Context) error {
	if o.input.Text == "" {
		return fmt.Errorf("document %s has no text", o.input.DocID)
	}

	// Markdown gets its frontmatter split off before chunking; the
	// frontmatter title wins over a caller-supplied one only when the
	// caller left it empty.
	switch o.input.FileType {
	case "markdown", "md":
		doc := parser.ParseMarkdown(o.input.Text)
		o.input.Text = doc.Body
		if o.input.Title == "" {
			o.input.Title = doc.Title
		}
	}

	if o.input.Title == "" {
		o.input.Title = o.input.DocID
	}
	return nil
}

func (o *processOp) chunkAndClassify(ctx context.Context) error {
	raw, err := parser.ChunkText(o.input.Text, o.svc.chunkCfg)
	if err != nil {
		return fmt.Errorf("chunk document: %w", err)
	}

	for _, chunk := range raw {
		cc := classifiedChunk{chunk: chunk}

		if o.svc.classifier != nil {
			start := time.Now()
			lens, confidence, err := o.svc.classifier.Classify(ctx, chunk.Text, o.input.Title)
			o.svc.metrics.RecordTiming(metrics.OpClassify, time.Since(start))
			if err != nil {
				// Per-chunk failure leaves the lens unset and never
				// aborts the document.
				o.unclassified++
				slog.Warn("chunk classification failed",
					"doc_id", o.input.DocID, "chunk_index", chunk.Index, "error", err)
			} else {
				cc.lens = &lens
				cc.confidence = &confidence
			}
		} else {
			o.unclassified++
		}

		if o.svc.embedder != nil {
			start := time.Now()
			vec, err := o.svc.embedder.Embed(ctx, chunk.Text)
			o.svc.metrics.RecordTiming(metrics.OpEmbedding, time.Since(start))
			if err != nil {
				slog.Warn("chunk embedding failed",
					"doc_id", o.input.DocID, "chunk_index", chunk.Index, "error", err)
			} else {
				cc.embedding = vec
			}
		}

		o.chunks = append(o.chunks, cc)
	}
	return nil
}

func (o *processOp) store(ctx context.Context) error {
	docRecordID := uuid.New().String()[:8]
	if _, err := o.svc.db.CreateDocument(ctx, docRecordID,
		o.input.ProjectID, o.input.DocID, o.input.Title,
		models.SourceUpload, o.input.Text, o.input.FileType); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	o.documentID = docRecordID

	inputs := make([]models.ChunkInput, len(o.chunks))
	for i, cc := range o.chunks {
		inputs[i] = models.ChunkInput{
			DocumentID:      o.documentID,
			ProjectID:       o.input.ProjectID,
			ChunkIndex:      cc.chunk.Index,
			Text:            cc.chunk.Text,
			LensType:        cc.lens,
			ConfidenceScore: cc.confidence,
			Tokens:          cc.chunk.Tokens,
			Embedding:       cc.embedding,
		}
	}
	if err := o.svc.db.CreateChunks(ctx, inputs); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	return nil
}

func (o *processOp) updateCoverage(ctx context.Context) error {
	if o.svc.coverage == nil {
		return nil
	}
	if _, err := o.svc.coverage.RunCheck(ctx, o.input.ProjectID); err != nil {
		return fmt.Errorf("update coverage: %w", err)
	}
	return nil
}

// ProcessOperation builds the document_processing operation for input.
func (s *DocumentService) ProcessOperation(input DocumentInput) tasks.Operation {
	return &processOp{svc: s, input: input}
}
