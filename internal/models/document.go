package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// SourceType records how a document entered the system.
type SourceType string

const (
	SourceUpload    SourceType = "upload"
	SourceConnector SourceType = "connector"
	SourceGenerated SourceType = "generated"
)

// GenerationStatus tracks the lifecycle of generated content on a chunk.
type GenerationStatus string

const (
	GenNotApplicable GenerationStatus = "not_applicable"
	GenPending       GenerationStatus = "pending"
	GenGenerating    GenerationStatus = "generating"
	GenCompleted     GenerationStatus = "completed"
	GenFailed        GenerationStatus = "failed"
)

// Document is a parent record for classified chunks. Raw text arrives
// already extracted; file parsing happens upstream of this core.
type Document struct {
	ID         surrealmodels.RecordID `json:"id"`
	ProjectID  string                 `json:"project_id"`
	DocID      string                 `json:"doc_id"`
	Title      string                 `json:"title"`
	SourceType SourceType             `json:"source_type"`
	SourceURL  *string                `json:"source_url,omitempty"`
	RawText    string                 `json:"raw_text"`
	FileType   string                 `json:"file_type"`
	CreatedAt  time.Time              `json:"created_at"`
}

// DocumentChunk is the unit of classification and coverage counting.
// Text is immutable once created; reclassification updates only
// lens_type and confidence_score.
type DocumentChunk struct {
	ID         surrealmodels.RecordID `json:"id"`
	DocumentID string                 `json:"document_id"`
	ProjectID  string                 `json:"project_id"`
	ChunkIndex int                    `json:"chunk_index"`
	Text       string                 `json:"text"`

	// Classification. LensType is nil for chunks with no successful
	// classification; those are excluded from coverage counts.
	LensType        *LensType `json:"lens_type,omitempty"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty"`

	ImportanceScore float64 `json:"importance_score"`

	Tokens    int       `json:"tokens"`
	Embedding []float32 `json:"embedding,omitempty"`

	IsGenerated      bool             `json:"is_generated"`
	GenerationStatus GenerationStatus `json:"generation_status"`

	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ChunkInput is the payload for creating chunks under a document.
type ChunkInput struct {
	DocumentID       string           `json:"document_id"`
	ProjectID        string           `json:"project_id"`
	ChunkIndex       int              `json:"chunk_index"`
	Text             string           `json:"text"`
	LensType         *LensType        `json:"lens_type,omitempty"`
	ConfidenceScore  *float64         `json:"confidence_score,omitempty"`
	Tokens           int              `json:"tokens"`
	Embedding        []float32        `json:"embedding,omitempty"`
	IsGenerated      bool             `json:"is_generated"`
	GenerationStatus GenerationStatus `json:"generation_status"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

// GraphEntity is an entity extracted from chunk text and mirrored into
// the knowledge graph store.
type GraphEntity struct {
	ID          surrealmodels.RecordID `json:"id"`
	ProjectID   string                 `json:"project_id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	LensType    *LensType              `json:"lens_type,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}
