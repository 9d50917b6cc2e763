package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docharvester/docharvester-go/internal/config"
	"github.com/docharvester/docharvester-go/internal/coverage"
	"github.com/docharvester/docharvester-go/internal/db"
	"github.com/docharvester/docharvester-go/internal/metrics"
	"github.com/docharvester/docharvester-go/internal/models"
)

// CoverageService is the coverage query surface: per-project
// requirements, computed status snapshots, and background checks.
type CoverageService struct {
	db       *db.Client
	defaults map[models.LensType]config.LensDefault
	metrics  *metrics.Collector

	mu       sync.Mutex
	checking map[string]bool // per-project in-flight checks
}

// NewCoverageService creates a coverage service. defaults come from
// config.LoadCoverageDefaults; a nil map falls back to the builtins.
func NewCoverageService(client *db.Client, defaults map[models.LensType]config.LensDefault, collector *metrics.Collector) *CoverageService {
	if defaults == nil {
		defaults = config.BuiltinCoverageDefaults()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &CoverageService{
		db:       client,
		defaults: defaults,
		metrics:  collector,
		checking: make(map[string]bool),
	}
}

// GetRequirements returns a project's coverage requirements, creating
// them from the per-lens defaults on first access.
func (s *CoverageService) GetRequirements(ctx context.Context, projectID string) ([]models.CoverageRequirement, error) {
	reqs, err := s.db.ListRequirements(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	if len(reqs) > 0 {
		return reqs, nil
	}

	for _, lens := range models.AllLensTypes {
		def, ok := s.defaults[lens]
		if !ok {
			continue
		}
		req, err := s.db.UpsertRequirement(ctx, projectID, lens, def.Required, def.MinDocuments)
		if err != nil {
			return nil, fmt.Errorf("create default requirement for %s: %w", lens, err)
		}
		reqs = append(reqs, *req)
	}

	slog.Info("created default coverage requirements", "project_id", projectID, "count", len(reqs))
	return reqs, nil
}

// SetRequirement updates the requirement for one lens.
func (s *CoverageService) SetRequirement(ctx context.Context, projectID string, lens models.LensType, isRequired bool, minDocuments int) (*models.CoverageRequirement, error) {
	if err := coverage.ValidateRequirement(models.CoverageRequirement{
		ProjectID:    projectID,
		LensType:     lens,
		IsRequired:   isRequired,
		MinDocuments: minDocuments,
	}); err != nil {
		return nil, err
	}
	return s.db.UpsertRequirement(ctx, projectID, lens, isRequired, minDocuments)
}

// GetStatus computes a fresh coverage report without persisting it.
func (s *CoverageService) GetStatus(ctx context.Context, projectID string) (*coverage.Report, error) {
	report, err := s.compute(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// RunCheck computes the coverage report and replaces the persisted
// snapshot wholesale. The previous snapshot is superseded, not merged.
func (s *CoverageService) RunCheck(ctx context.Context, projectID string) (*coverage.Report, error) {
	report, err := s.compute(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.db.ReplaceCoverageStatuses(ctx, projectID, report.Statuses); err != nil {
		return nil, fmt.Errorf("persist coverage snapshot: %w", err)
	}
	slog.Info("coverage check complete",
		"project_id", projectID, "overall", report.Overall, "recommendations", len(report.Recommendations))
	return report, nil
}

// LastSnapshot returns the persisted result of the most recent
// coverage check, empty when none has run. It never recomputes; pair
// it with TriggerCheck for a cheap read-then-refresh flow.
func (s *CoverageService) LastSnapshot(ctx context.Context, projectID string) ([]models.CoverageStatus, error) {
	statuses, err := s.db.ListCoverageStatuses(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load coverage snapshot: %w", err)
	}
	return statuses, nil
}

// TriggerCheck queues a background coverage check and returns
// immediately. At most one check per project is in flight; a trigger
// while one is running reports queued=false.
func (s *CoverageService) TriggerCheck(projectID string) bool {
	s.mu.Lock()
	if s.checking[projectID] {
		s.mu.Unlock()
		return false
	}
	s.checking[projectID] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.checking, projectID)
			s.mu.Unlock()
		}()
		// Outlives the triggering request.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.RunCheck(ctx, projectID); err != nil {
			slog.Warn("background coverage check failed", "project_id", projectID, "error", err)
		}
	}()
	return true
}

func (s *CoverageService) compute(ctx context.Context, projectID string) (*coverage.Report, error) {
	reqs, err := s.GetRequirements(ctx, projectID)
	if err != nil {
		return nil, err
	}
	chunks, err := s.db.ListProjectChunks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	start := time.Now()
	report := coverage.Compute(projectID, reqs, chunks, time.Now().UTC())
	s.metrics.RecordTiming(metrics.OpCoverageCompute, time.Since(start))

	return &report, nil
}
