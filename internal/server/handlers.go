package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/docharvester/docharvester-go/internal/coverage"
	"github.com/docharvester/docharvester-go/internal/models"
	"github.com/docharvester/docharvester-go/internal/service"
	"github.com/docharvester/docharvester-go/internal/tasks"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// submit runs op through the runner and answers 202 with the task
// snapshot, or 409 when an equivalent task is already active.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, op tasks.Operation, projectID, userID string) {
	task, err := s.deps.Runner.Submit(r.Context(), op, projectID, userID)
	if err != nil {
		if errors.Is(err, tasks.ErrConflict) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, task.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Metrics.Snapshot())
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Tracker.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task.Snapshot())
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Tracker.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, tasks.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, tasks.ErrInvalidState):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	task, err := s.deps.Tracker.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task.Snapshot())
}

func (s *Server) handleListActiveTasks(w http.ResponseWriter, r *http.Request) {
	active := s.deps.Tracker.ListActive(r.PathValue("project"))
	if active == nil {
		active = []tasks.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": active})
}

func (s *Server) handleTaskHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	history, err := s.deps.Tracker.History(r.Context(), r.PathValue("project"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []tasks.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": history})
}

func (s *Server) handleGetRequirements(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.deps.Coverage.GetRequirements(r.Context(), r.PathValue("project"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requirements": reqs})
}

func (s *Server) handleSetRequirement(w http.ResponseWriter, r *http.Request) {
	lens := models.LensType(strings.ToUpper(r.PathValue("lens")))
	if !models.ValidLensType(lens) {
		writeError(w, http.StatusBadRequest, "unknown lens type")
		return
	}

	var body struct {
		IsRequired   bool `json:"is_required"`
		MinDocuments int  `json:"min_documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := s.deps.Coverage.SetRequirement(r.Context(), r.PathValue("project"), lens, body.IsRequired, body.MinDocuments)
	if err != nil {
		if errors.Is(err, coverage.ErrConfiguration) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleGetCoverageStatus(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")

	// cached=true serves the persisted snapshot of the last check
	// instead of recomputing over every chunk.
	if cached, _ := strconv.ParseBool(r.URL.Query().Get("cached")); cached {
		statuses, err := s.deps.Coverage.LastSnapshot(r.Context(), projectID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if statuses == nil {
			statuses = []models.CoverageStatus{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"project_id": projectID,
			"statuses":   statuses,
		})
		return
	}

	report, err := s.deps.Coverage.GetStatus(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")
	queued := s.deps.Coverage.TriggerCheck(projectID)
	msg := "coverage check queued"
	if !queued {
		msg = "coverage check already running"
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":    msg,
		"project_id": projectID,
		"queued":     queued,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")

	var body struct {
		LensTypes []string `json:"lens_types"`
		Force     bool     `json:"force"`
		UserID    string   `json:"user_id"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	lenses := make([]models.LensType, 0, len(body.LensTypes))
	for _, raw := range body.LensTypes {
		lenses = append(lenses, models.LensType(strings.ToUpper(raw)))
	}

	op, err := s.deps.Generate.GenerateOperation(r.Context(), projectID, lenses, body.Force)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.submit(w, r, op, projectID, body.UserID)
}

func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")

	var body struct {
		DocID    string `json:"doc_id"`
		Title    string `json:"title"`
		Text     string `json:"text"`
		FileType string `json:"file_type"`
		UserID   string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.DocID == "" || body.Text == "" {
		writeError(w, http.StatusBadRequest, "doc_id and text are required")
		return
	}

	op := s.deps.Documents.ProcessOperation(service.DocumentInput{
		ProjectID: projectID,
		DocID:     body.DocID,
		Title:     body.Title,
		Text:      body.Text,
		FileType:  body.FileType,
	})
	s.submit(w, r, op, projectID, body.UserID)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")
	s.submit(w, r, s.deps.Entities.ExtractOperation(projectID), projectID, r.URL.Query().Get("user_id"))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")
	s.submit(w, r, s.deps.Entities.RefreshOperation(projectID), projectID, r.URL.Query().Get("user_id"))
}

func (s *Server) handleWiki(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")
	s.submit(w, r, s.deps.Wiki.WikiOperation(projectID), projectID, r.URL.Query().Get("user_id"))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project")
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	opts := service.SearchOptions{Query: query}
	if raw := r.URL.Query().Get("lens"); raw != "" {
		lens := models.LensType(strings.ToUpper(raw))
		if !models.ValidLensType(lens) {
			writeError(w, http.StatusBadRequest, "unknown lens type")
			return
		}
		opts.Lens = &lens
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = limit
	}

	chunks, err := s.deps.Search.Search(r.Context(), projectID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chunks == nil {
		chunks = []models.DocumentChunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}
