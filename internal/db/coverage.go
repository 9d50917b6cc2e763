package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/docharvester/docharvester-go/internal/models"
)

// ListRequirements returns all coverage requirements for a project.
func (c *Client) ListRequirements(ctx context.Context, projectID string) ([]models.CoverageRequirement, error) {
	results, err := surrealdb.Query[[]models.CoverageRequirement](ctx, c.db, `
		SELECT * FROM coverage_requirement
		WHERE project_id = $project_id
		ORDER BY lens_type
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.CoverageRequirement{}, nil
	}
	return (*results)[0].Result, nil
}

// UpsertRequirement creates or updates the requirement for one
// (project, lens) pair.
func (c *Client) UpsertRequirement(
	ctx context.Context,
	projectID string,
	lens models.LensType,
	isRequired bool,
	minDocuments int,
) (*models.CoverageRequirement, error) {
	results, err := surrealdb.Query[[]models.CoverageRequirement](ctx, c.db, `
		UPSERT coverage_requirement SET
			project_id = $project_id,
			lens_type = $lens_type,
			is_required = $is_required,
			min_documents = $min_documents,
			updated_at = time::now()
		WHERE project_id = $project_id AND lens_type = $lens_type
		RETURN AFTER
	`, map[string]any{
		"project_id":    projectID,
		"lens_type":     string(lens),
		"is_required":   isRequired,
		"min_documents": minDocuments,
	})
	if err != nil {
		return nil, wrapQueryError(err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("upsert requirement: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// ListCoverageStatuses returns the latest coverage snapshot for a project.
func (c *Client) ListCoverageStatuses(ctx context.Context, projectID string) ([]models.CoverageStatus, error) {
	results, err := surrealdb.Query[[]models.CoverageStatus](ctx, c.db, `
		SELECT * FROM coverage_status
		WHERE project_id = $project_id
		ORDER BY lens_type
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return nil, fmt.Errorf("list coverage statuses: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.CoverageStatus{}, nil
	}
	return (*results)[0].Result, nil
}

// ReplaceCoverageStatuses deletes a project's coverage snapshot and
// writes the new one in a single transaction. Each check supersedes the
// previous snapshot wholesale.
func (c *Client) ReplaceCoverageStatuses(ctx context.Context, projectID string, statuses []models.CoverageStatus) error {
	rows := make([]map[string]any, len(statuses))
	for i, s := range statuses {
		topics := s.MissingTopics
		if topics == nil {
			topics = []string{}
		}
		rows[i] = map[string]any{
			"project_id":          s.ProjectID,
			"lens_type":           string(s.LensType),
			"status":              string(s.Status),
			"document_count":      s.DocumentCount,
			"chunk_count":         s.ChunkCount,
			"coverage_percentage": s.CoveragePercentage,
			"missing_topics":      topics,
			"last_checked":        s.LastChecked,
		}
	}

	sql := `
		BEGIN TRANSACTION;
		DELETE coverage_status WHERE project_id = $project_id;
		FOR $row IN $rows {
			CREATE coverage_status CONTENT $row;
		};
		COMMIT TRANSACTION;
	`

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"project_id": projectID,
		"rows":       rows,
	})
	if err != nil {
		return wrapQueryError(err)
	}
	return nil
}
