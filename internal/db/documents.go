package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/docharvester/docharvester-go/internal/models"
)

// CreateDocument stores a parent document record.
func (c *Client) CreateDocument(
	ctx context.Context,
	id string,
	projectID string,
	docID string,
	title string,
	sourceType models.SourceType,
	rawText string,
	fileType string,
) (*models.Document, error) {
	results, err := surrealdb.Query[[]models.Document](ctx, c.db, `
		CREATE type::record("document", $id) SET
			project_id = $project_id,
			doc_id = $doc_id,
			title = $title,
			source_type = $source_type,
			raw_text = $raw_text,
			file_type = $file_type
		RETURN AFTER
	`, map[string]any{
		"id":          id,
		"project_id":  projectID,
		"doc_id":      docID,
		"title":       title,
		"source_type": string(sourceType),
		"raw_text":    rawText,
		"file_type":   fileType,
	})
	if err != nil {
		return nil, wrapQueryError(err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create document: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// CreateChunks stores a batch of chunks in one statement.
func (c *Client) CreateChunks(ctx context.Context, chunks []models.ChunkInput) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		genStatus := ch.GenerationStatus
		if genStatus == "" {
			genStatus = models.GenNotApplicable
		}
		row := map[string]any{
			"document_id":       ch.DocumentID,
			"project_id":        ch.ProjectID,
			"chunk_index":       ch.ChunkIndex,
			"text":              ch.Text,
			"tokens":            ch.Tokens,
			"is_generated":      ch.IsGenerated,
			"generation_status": string(genStatus),
		}
		if ch.LensType != nil {
			row["lens_type"] = string(*ch.LensType)
		}
		if ch.ConfidenceScore != nil {
			row["confidence_score"] = *ch.ConfidenceScore
		}
		if len(ch.Embedding) > 0 {
			row["embedding"] = ch.Embedding
		}
		if ch.Metadata != nil {
			row["metadata"] = ch.Metadata
		}
		rows[i] = row
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		FOR $row IN $rows {
			CREATE document_chunk CONTENT $row;
		};
	`, map[string]any{"rows": rows})
	if err != nil {
		return wrapQueryError(err)
	}
	return nil
}

// ListProjectChunks returns every chunk for a project. Used by coverage
// computation, which needs the full inventory.
func (c *Client) ListProjectChunks(ctx context.Context, projectID string) ([]models.DocumentChunk, error) {
	results, err := surrealdb.Query[[]models.DocumentChunk](ctx, c.db, `
		SELECT * FROM document_chunk
		WHERE project_id = $project_id
		ORDER BY document_id, chunk_index
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return nil, fmt.Errorf("list project chunks: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.DocumentChunk{}, nil
	}
	return (*results)[0].Result, nil
}

// ListChunksByLens returns a project's chunks classified under one lens.
func (c *Client) ListChunksByLens(ctx context.Context, projectID string, lens models.LensType) ([]models.DocumentChunk, error) {
	results, err := surrealdb.Query[[]models.DocumentChunk](ctx, c.db, `
		SELECT * FROM document_chunk
		WHERE project_id = $project_id AND lens_type = $lens_type
		ORDER BY document_id, chunk_index
	`, map[string]any{"project_id": projectID, "lens_type": string(lens)})
	if err != nil {
		return nil, fmt.Errorf("list chunks by lens: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.DocumentChunk{}, nil
	}
	return (*results)[0].Result, nil
}

// SetDocumentText fills in a document's raw text once generation has
// produced it. The record is created before the model runs.
func (c *Client) SetDocumentText(ctx context.Context, id, text string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("document", $id) SET raw_text = $raw_text
	`, map[string]any{"id": id, "raw_text": text})
	if err != nil {
		return wrapQueryError(err)
	}
	return nil
}

// CreateGenerationPlaceholder creates the pending chunk that stands in
// for a lens's generated content while the model runs. Placeholders
// carry no text; the completed chunks replace them.
func (c *Client) CreateGenerationPlaceholder(ctx context.Context, id, documentID, projectID string, lens models.LensType) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("document_chunk", $id) SET
			document_id = $document_id,
			project_id = $project_id,
			chunk_index = 0,
			text = "",
			lens_type = $lens_type,
			is_generated = true,
			generation_status = "pending"
	`, map[string]any{
		"id":          id,
		"document_id": documentID,
		"project_id":  projectID,
		"lens_type":   string(lens),
	})
	if err != nil {
		return wrapQueryError(err)
	}
	return nil
}

// UpdateGenerationStatus moves a generated chunk through its lifecycle.
func (c *Client) UpdateGenerationStatus(ctx context.Context, chunkID string, status models.GenerationStatus) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("document_chunk", $id) SET
			generation_status = $status
	`, map[string]any{"id": chunkID, "status": string(status)})
	if err != nil {
		return wrapQueryError(err)
	}
	return nil
}

// MarkLensGenerationFailed flags a lens's generated placeholder chunks
// as failed after an unsuccessful generation attempt.
func (c *Client) MarkLensGenerationFailed(ctx context.Context, projectID string, lens models.LensType) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE document_chunk SET generation_status = "failed"
		WHERE project_id = $project_id
		  AND lens_type = $lens_type
		  AND is_generated = true
		  AND generation_status IN ["pending", "generating"]
	`, map[string]any{"project_id": projectID, "lens_type": string(lens)})
	if err != nil {
		return wrapQueryError(err)
	}
	return nil
}

// DeleteChunk removes one chunk.
func (c *Client) DeleteChunk(ctx context.Context, id string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE type::record("document_chunk", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return wrapQueryError(err)
	}
	return nil
}

// CountProjectDocuments returns the number of documents in a project.
func (c *Client) CountProjectDocuments(ctx context.Context, projectID string) (int, error) {
	results, err := surrealdb.Query[[]struct {
		C int `json:"c"`
	}](ctx, c.db, `
		SELECT count() AS c FROM document
		WHERE project_id = $project_id
		GROUP ALL
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].C, nil
}
