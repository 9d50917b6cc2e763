package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docharvester/docharvester-go/internal/db"
	"github.com/docharvester/docharvester-go/internal/llm"
	"github.com/docharvester/docharvester-go/internal/metrics"
	"github.com/docharvester/docharvester-go/internal/models"
)

// SearchService finds chunks relevant to a query, combining full-text
// and vector search when an embedder is configured.
type SearchService struct {
	db       *db.Client
	embedder *llm.Embedder // optional
	metrics  *metrics.Collector
}

func NewSearchService(client *db.Client, embedder *llm.Embedder, collector *metrics.Collector) *SearchService {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &SearchService{
		db:       client,
		embedder: embedder,
		metrics:  collector,
	}
}

// SearchOptions configures a chunk search.
type SearchOptions struct {
	Query string
	Lens  *models.LensType
	Limit int
}

// Search returns the most relevant chunks for a project. An embedding
// failure degrades to text-only search rather than failing the query.
func (s *SearchService) Search(ctx context.Context, projectID string, opts SearchOptions) ([]models.DocumentChunk, error) {
	if opts.Query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}

	var embedding []float32
	if s.embedder != nil {
		start := time.Now()
		vec, err := s.embedder.Embed(ctx, opts.Query)
		s.metrics.RecordTiming(metrics.OpEmbedding, time.Since(start))
		if err != nil {
			slog.Warn("query embedding failed, falling back to text search",
				"project_id", projectID, "error", err)
		} else {
			embedding = vec
		}
	}

	start := time.Now()
	chunks, err := s.db.SearchChunks(ctx, db.ChunkSearchOptions{
		ProjectID: projectID,
		Query:     opts.Query,
		Embedding: embedding,
		Lens:      opts.Lens,
		Limit:     opts.Limit,
	})
	s.metrics.RecordTiming(metrics.OpDBQuery, time.Since(start))
	if err != nil {
		return nil, err
	}
	return chunks, nil
}
