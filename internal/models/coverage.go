package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// CoverageRequirement is the per-project, per-lens configuration that
// drives coverage scoring. Created from project defaults, mutable by an
// administrator, never deleted while the project exists.
type CoverageRequirement struct {
	ID           surrealmodels.RecordID `json:"id"`
	ProjectID    string                 `json:"project_id"`
	LensType     LensType               `json:"lens_type"`
	IsRequired   bool                   `json:"is_required"`
	MinDocuments int                    `json:"min_documents"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// CoverageState is the qualitative bucket for a lens's coverage.
type CoverageState string

const (
	CoverageMissing  CoverageState = "missing"
	CoveragePartial  CoverageState = "partial"
	CoverageGood     CoverageState = "good"
	CoverageComplete CoverageState = "complete"
)

// CoverageStatus is the computed per-lens snapshot for a project.
// Each coverage check replaces the previous snapshot wholesale.
type CoverageStatus struct {
	ID                 surrealmodels.RecordID `json:"id"`
	ProjectID          string                 `json:"project_id"`
	LensType           LensType               `json:"lens_type"`
	Status             CoverageState          `json:"status"`
	DocumentCount      int                    `json:"document_count"`
	ChunkCount         int                    `json:"chunk_count"`
	CoveragePercentage float64                `json:"coverage_percentage"`
	MissingTopics      []string               `json:"missing_topics"`
	LastChecked        time.Time              `json:"last_checked"`
}

// RecommendationPriority orders recommendations for the UI.
type RecommendationPriority string

const (
	PriorityHigh   RecommendationPriority = "high"
	PriorityMedium RecommendationPriority = "medium"
	PriorityLow    RecommendationPriority = "low"
)

// Recommendation is an actionable suggestion derived from a coverage gap.
type Recommendation struct {
	LensType           LensType               `json:"lens_type"`
	Priority           RecommendationPriority `json:"priority"`
	Action             string                 `json:"action"`
	Message            string                 `json:"message"`
	SuggestedTopics    []string               `json:"suggested_topics"`
	CoveragePercentage float64                `json:"coverage_percentage"`
}
