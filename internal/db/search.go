package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/docharvester/docharvester-go/internal/models"
)

// ChunkSearchOptions configures a chunk search.
type ChunkSearchOptions struct {
	ProjectID string
	Query     string
	Embedding []float32 // nil disables the vector leg
	Lens      *models.LensType
	Limit     int
}

// SearchChunks performs RRF fusion of BM25 and vector search over a
// project's chunks. Without an embedding only the full-text leg runs.
// Vector leg: HNSW with ef=40; BM25 analyzer 0; RRF k=60.
func (c *Client) SearchChunks(ctx context.Context, opts ChunkSearchOptions) ([]models.DocumentChunk, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	lensClause := ""
	if opts.Lens != nil {
		lensClause = "AND lens_type = $lens"
	}

	fields := `id, document_id, project_id, chunk_index, text, lens_type,
			confidence_score, importance_score, tokens, is_generated,
			generation_status, metadata, created_at`

	var sql string
	if len(opts.Embedding) > 0 {
		sql = fmt.Sprintf(`
			SELECT * FROM search::rrf([
				(SELECT %s FROM document_chunk
				 WHERE embedding <|%d,40|> $emb AND project_id = $project_id %s),
				(SELECT %s FROM document_chunk
				 WHERE text @0@ $q AND project_id = $project_id %s)
			], $limit, 60)
		`, fields, limit*2, lensClause, fields, lensClause)
	} else {
		sql = fmt.Sprintf(`
			SELECT %s FROM document_chunk
			WHERE text @0@ $q AND project_id = $project_id %s
			LIMIT $limit
		`, fields, lensClause)
	}

	vars := map[string]any{
		"q":          opts.Query,
		"project_id": opts.ProjectID,
		"limit":      limit,
	}
	if len(opts.Embedding) > 0 {
		vars["emb"] = opts.Embedding
	}
	if opts.Lens != nil {
		vars["lens"] = string(*opts.Lens)
	}

	results, err := surrealdb.Query[[]models.DocumentChunk](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.DocumentChunk{}, nil
	}
	return (*results)[0].Result, nil
}
