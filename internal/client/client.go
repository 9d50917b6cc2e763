// Package client provides a JSON API client for the DocHarvester server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/docharvester/docharvester-go/internal/coverage"
	"github.com/docharvester/docharvester-go/internal/models"
	"github.com/docharvester/docharvester-go/internal/tasks"
)

// Client talks to the DocHarvester HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
// If endpoint is empty, uses DOCHARVESTER_SERVER_URL or defaults to
// localhost:8080. Timeout is configurable via DOCHARVESTER_CLIENT_TIMEOUT
// (default 10m: generation runs are slow).
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("DOCHARVESTER_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:8080"
	}

	timeout := 10 * time.Minute
	if t := os.Getenv("DOCHARVESTER_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do sends a request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server error: %s", resp.Status)
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// GetTask fetches one task snapshot.
func (c *Client) GetTask(ctx context.Context, id string) (*tasks.Snapshot, error) {
	var snap tasks.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/progress/tasks/"+url.PathEscape(id), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListActiveTasks fetches all non-terminal tasks for a project.
func (c *Client) ListActiveTasks(ctx context.Context, projectID string) ([]tasks.Snapshot, error) {
	var body struct {
		Tasks []tasks.Snapshot `json:"tasks"`
	}
	path := "/api/progress/projects/" + url.PathEscape(projectID) + "/tasks"
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Tasks, nil
}

// TaskHistory fetches a project's recent tasks, terminal ones
// included. limit of 0 takes the server default.
func (c *Client) TaskHistory(ctx context.Context, projectID string, limit int) ([]tasks.Snapshot, error) {
	var body struct {
		Tasks []tasks.Snapshot `json:"tasks"`
	}
	path := "/api/progress/projects/" + url.PathEscape(projectID) + "/tasks/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Tasks, nil
}

// CancelTask requests cancellation and returns the updated snapshot.
func (c *Client) CancelTask(ctx context.Context, id string) (*tasks.Snapshot, error) {
	var snap tasks.Snapshot
	if err := c.do(ctx, http.MethodDelete, "/api/progress/tasks/"+url.PathEscape(id), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetRequirements fetches a project's coverage requirements.
func (c *Client) GetRequirements(ctx context.Context, projectID string) ([]models.CoverageRequirement, error) {
	var body struct {
		Requirements []models.CoverageRequirement `json:"requirements"`
	}
	path := "/api/coverage/requirements/" + url.PathEscape(projectID)
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Requirements, nil
}

// SetRequirement updates the requirement for one lens.
func (c *Client) SetRequirement(ctx context.Context, projectID string, lens models.LensType, isRequired bool, minDocuments int) (*models.CoverageRequirement, error) {
	payload := map[string]any{
		"is_required":   isRequired,
		"min_documents": minDocuments,
	}
	var req models.CoverageRequirement
	path := "/api/coverage/requirements/" + url.PathEscape(projectID) + "/" + url.PathEscape(string(lens))
	if err := c.do(ctx, http.MethodPut, path, payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetCoverageStatus fetches the coverage report for a project.
func (c *Client) GetCoverageStatus(ctx context.Context, projectID string) (*coverage.Report, error) {
	var report coverage.Report
	path := "/api/coverage/status/" + url.PathEscape(projectID)
	if err := c.do(ctx, http.MethodGet, path, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetCoverageSnapshot fetches the persisted result of the last
// coverage check without recomputing. Empty when no check has run.
func (c *Client) GetCoverageSnapshot(ctx context.Context, projectID string) ([]models.CoverageStatus, error) {
	var body struct {
		Statuses []models.CoverageStatus `json:"statuses"`
	}
	path := "/api/coverage/status/" + url.PathEscape(projectID) + "?cached=true"
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Statuses, nil
}

// TriggerCheck queues a background coverage check.
func (c *Client) TriggerCheck(ctx context.Context, projectID string) (bool, error) {
	var body struct {
		Queued bool `json:"queued"`
	}
	path := "/api/coverage/check/" + url.PathEscape(projectID)
	if err := c.do(ctx, http.MethodPost, path, nil, &body); err != nil {
		return false, err
	}
	return body.Queued, nil
}

// Generate submits a documentation generation task.
func (c *Client) Generate(ctx context.Context, projectID string, lensTypes []string, force bool) (*tasks.Snapshot, error) {
	payload := map[string]any{
		"lens_types": lensTypes,
		"force":      force,
	}
	var snap tasks.Snapshot
	path := "/api/coverage/generate/" + url.PathEscape(projectID)
	if err := c.do(ctx, http.MethodPost, path, payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DocumentRequest is the payload for document processing.
type DocumentRequest struct {
	DocID    string `json:"doc_id"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	FileType string `json:"file_type"`
}

// ProcessDocument submits a document for chunking and classification.
func (c *Client) ProcessDocument(ctx context.Context, projectID string, doc DocumentRequest) (*tasks.Snapshot, error) {
	var snap tasks.Snapshot
	path := "/api/projects/" + url.PathEscape(projectID) + "/documents"
	if err := c.do(ctx, http.MethodPost, path, doc, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Extract submits an entity extraction task.
func (c *Client) Extract(ctx context.Context, projectID string) (*tasks.Snapshot, error) {
	var snap tasks.Snapshot
	path := "/api/projects/" + url.PathEscape(projectID) + "/extract"
	if err := c.do(ctx, http.MethodPost, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Refresh submits a knowledge graph refresh task.
func (c *Client) Refresh(ctx context.Context, projectID string) (*tasks.Snapshot, error) {
	var snap tasks.Snapshot
	path := "/api/projects/" + url.PathEscape(projectID) + "/refresh"
	if err := c.do(ctx, http.MethodPost, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GenerateWiki submits a wiki generation task.
func (c *Client) GenerateWiki(ctx context.Context, projectID string) (*tasks.Snapshot, error) {
	var snap tasks.Snapshot
	path := "/api/projects/" + url.PathEscape(projectID) + "/wiki"
	if err := c.do(ctx, http.MethodPost, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Search queries a project's chunks. lens may be empty; limit <= 0
// uses the server default.
func (c *Client) Search(ctx context.Context, projectID, query, lens string, limit int) ([]models.DocumentChunk, error) {
	values := url.Values{}
	values.Set("q", query)
	if lens != "" {
		values.Set("lens", lens)
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}

	var body struct {
		Chunks []models.DocumentChunk `json:"chunks"`
	}
	path := "/api/projects/" + url.PathEscape(projectID) + "/search?" + values.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.Chunks, nil
}
