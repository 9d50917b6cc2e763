package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/docharvester/docharvester-go/internal/models"
)

// CreateTask atomically checks for an active task on the same
// (project_id, task_type) and creates a new pending record. The check
// and the create run in one transaction so concurrent creation attempts
// cannot both succeed; the loser gets ErrTaskConflict.
// A totalSteps of 0 means the step count is not known yet.
func (c *Client) CreateTask(
	ctx context.Context,
	id string,
	taskType models.TaskType,
	projectID string,
	userID string,
	totalSteps int,
	estimatedDuration float64,
) (*models.ProcessingTask, error) {
	sql := `
		BEGIN TRANSACTION;
		LET $active = (SELECT VALUE id FROM processing_task
			WHERE project_id = $project_id
			  AND task_type = $task_type
			  AND status IN ["pending", "running"]);
		IF array::len($active) > 0 {
			THROW "task already active"
		};
		CREATE type::record("processing_task", $id) SET
			task_type = $task_type,
			status = "pending",
			project_id = $project_id,
			user_id = $user_id,
			total_steps = $total_steps,
			completed_steps = 0,
			progress_percentage = 0.0,
			estimated_duration_seconds = $estimated,
			cancel_requested = false;
		COMMIT TRANSACTION;
	`

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":          id,
		"task_type":   string(taskType),
		"project_id":  projectID,
		"user_id":     userID,
		"total_steps": totalSteps,
		"estimated":   estimatedDuration,
	})
	if err != nil {
		return nil, wrapQueryError(err)
	}

	task, err := c.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("create task: record %s missing after create", id)
	}
	return task, nil
}

// GetTask retrieves a task by ID. Returns nil if not found.
func (c *Client) GetTask(ctx context.Context, id string) (*models.ProcessingTask, error) {
	results, err := surrealdb.Query[[]models.ProcessingTask](ctx, c.db, `
		SELECT * FROM type::record("processing_task", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// UpdateTask applies a partial update to a task record. Keys in patch
// are field names; updated_at is always touched.
func (c *Client) UpdateTask(ctx context.Context, id string, patch map[string]any) (*models.ProcessingTask, error) {
	merged := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		merged[k] = v
	}
	merged["updated_at"] = time.Now().UTC()

	results, err := surrealdb.Query[[]models.ProcessingTask](ctx, c.db, `
		UPDATE type::record("processing_task", $id) MERGE $patch RETURN AFTER
	`, map[string]any{"id": id, "patch": merged})
	if err != nil {
		return nil, wrapQueryError(err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("update task %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// ListActiveTasks returns all pending or running tasks for a project.
func (c *Client) ListActiveTasks(ctx context.Context, projectID string) ([]models.ProcessingTask, error) {
	results, err := surrealdb.Query[[]models.ProcessingTask](ctx, c.db, `
		SELECT * FROM processing_task
		WHERE project_id = $project_id AND status IN ["pending", "running"]
		ORDER BY created_at DESC
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.ProcessingTask{}, nil
	}
	return (*results)[0].Result, nil
}

// ListProjectTasks returns recent tasks for a project, newest first.
func (c *Client) ListProjectTasks(ctx context.Context, projectID string, limit int) ([]models.ProcessingTask, error) {
	if limit <= 0 {
		limit = 50
	}

	results, err := surrealdb.Query[[]models.ProcessingTask](ctx, c.db, `
		SELECT * FROM processing_task
		WHERE project_id = $project_id
		ORDER BY created_at DESC
		LIMIT $limit
	`, map[string]any{"project_id": projectID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list project tasks: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.ProcessingTask{}, nil
	}
	return (*results)[0].Result, nil
}
