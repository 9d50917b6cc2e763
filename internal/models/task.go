package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// TaskType identifies a long-running operation kind.
type TaskType string

const (
	TaskWikiGeneration        TaskType = "wiki_generation"
	TaskEntityExtraction      TaskType = "entity_extraction"
	TaskKnowledgeGraphRefresh TaskType = "knowledge_graph_refresh"
	TaskDocumentProcessing    TaskType = "document_processing"
)

// TaskStatus is the lifecycle state of a ProcessingTask.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Active reports whether s counts against the single-flight limit.
func (s TaskStatus) Active() bool {
	return s == TaskPending || s == TaskRunning
}

// ProcessingTask is the persisted record of one long-running operation.
// For a given (project_id, task_type) pair at most one task may be
// pending or running at any time.
type ProcessingTask struct {
	ID surrealmodels.RecordID `json:"id"`

	TaskType TaskType   `json:"task_type"`
	Status   TaskStatus `json:"status"`

	ProgressPercentage float64 `json:"progress_percentage"`
	CurrentStep        string  `json:"current_step"`
	TotalSteps         int     `json:"total_steps"`
	CompletedSteps     int     `json:"completed_steps"`

	EstimatedDurationSeconds float64  `json:"estimated_duration_seconds"`
	ElapsedTimeSeconds       float64  `json:"elapsed_time_seconds"`
	RemainingTimeSeconds     *float64 `json:"remaining_time_seconds,omitempty"`

	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`

	ResultData   map[string]any `json:"result_data,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`

	// Set by a cancellation request against a running task; the runner
	// observes it at the next step boundary.
	CancelRequested bool `json:"cancel_requested"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
