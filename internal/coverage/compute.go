// Package coverage computes per-lens documentation coverage for a
// project from its classified chunk inventory and a configurable
// requirement set.
package coverage

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/docharvester/docharvester-go/internal/models"
)

// ErrConfiguration indicates a malformed coverage requirement.
var ErrConfiguration = errors.New("invalid coverage requirement")

// ValidateRequirement checks a requirement's bounds.
func ValidateRequirement(req models.CoverageRequirement) error {
	if !models.ValidLensType(req.LensType) {
		return fmt.Errorf("%w: unknown lens type %q", ErrConfiguration, req.LensType)
	}
	if req.MinDocuments < 0 {
		return fmt.Errorf("%w: min_documents must be >= 0, got %d", ErrConfiguration, req.MinDocuments)
	}
	return nil
}

// Report is the result of one coverage computation.
type Report struct {
	Statuses        []models.CoverageStatus
	Overall         float64
	Recommendations []models.Recommendation
}

// Compute derives per-lens coverage statuses, the overall percentage
// and ranked recommendations. It is a pure function: identical inputs
// yield identical outputs (modulo the LastChecked timestamp, taken from
// now). Chunks without a lens assignment are ignored, as are generated
// chunks that have not completed.
func Compute(projectID string, requirements []models.CoverageRequirement, chunks []models.DocumentChunk, now time.Time) Report {
	reqByLens := make(map[models.LensType]models.CoverageRequirement, len(requirements))
	for _, r := range requirements {
		reqByLens[r.LensType] = r
	}

	type tally struct {
		docs   map[string]struct{}
		chunks int
	}
	tallies := make(map[models.LensType]*tally)
	for _, c := range chunks {
		if c.LensType == nil {
			continue
		}
		// Generated chunks count only once completed; pending,
		// generating and failed placeholders hold no content.
		if c.IsGenerated && c.GenerationStatus != models.GenCompleted {
			continue
		}
		lens := *c.LensType
		t := tallies[lens]
		if t == nil {
			t = &tally{docs: make(map[string]struct{})}
			tallies[lens] = t
		}
		t.docs[c.DocumentID] = struct{}{}
		t.chunks++
	}

	// Report every lens that has a requirement or observed chunks, in
	// canonical lens order for stable output.
	seen := make(map[models.LensType]struct{}, len(reqByLens)+len(tallies))
	var lenses []models.LensType
	for _, lens := range models.AllLensTypes {
		_, hasReq := reqByLens[lens]
		_, hasChunks := tallies[lens]
		if hasReq || hasChunks {
			lenses = append(lenses, lens)
			seen[lens] = struct{}{}
		}
	}
	var extras []models.LensType
	for lens := range tallies {
		if _, ok := seen[lens]; !ok {
			extras = append(extras, lens)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })
	lenses = append(lenses, extras...)

	var (
		statuses    []models.CoverageStatus
		requiredSum float64
		requiredN   int
	)
	for _, lens := range lenses {
		var docCount, chunkCount int
		if t := tallies[lens]; t != nil {
			docCount = len(t.docs)
			chunkCount = t.chunks
		}

		req, hasReq := reqByLens[lens]

		var pct float64
		if hasReq && req.IsRequired {
			min := req.MinDocuments
			if min < 1 {
				min = 1
			}
			pct = 100 * float64(docCount) / float64(min)
			if pct > 100 {
				pct = 100
			}
			requiredSum += pct
			requiredN++
		} else if docCount > 0 {
			pct = 100
		}

		status := models.CoverageStatus{
			ProjectID:          projectID,
			LensType:           lens,
			Status:             stateFor(pct),
			DocumentCount:      docCount,
			ChunkCount:         chunkCount,
			CoveragePercentage: pct,
			MissingTopics:      SuggestTopics(lens, docCount, req.MinDocuments),
			LastChecked:        now,
		}
		statuses = append(statuses, status)
	}

	overall := 0.0
	if requiredN > 0 {
		overall = requiredSum / float64(requiredN)
	}

	return Report{
		Statuses:        statuses,
		Overall:         overall,
		Recommendations: recommend(reqByLens, statuses),
	}
}

// stateFor maps a coverage percentage to its status band. Lower bounds
// are inclusive.
func stateFor(pct float64) models.CoverageState {
	switch {
	case pct >= 100:
		return models.CoverageComplete
	case pct >= 75:
		return models.CoverageGood
	case pct >= 1:
		return models.CoveragePartial
	default:
		return models.CoverageMissing
	}
}

func recommend(reqByLens map[models.LensType]models.CoverageRequirement, statuses []models.CoverageStatus) []models.Recommendation {
	var recs []models.Recommendation
	for _, s := range statuses {
		if s.Status != models.CoverageMissing && s.Status != models.CoveragePartial {
			continue
		}

		req, hasReq := reqByLens[s.LensType]
		required := hasReq && req.IsRequired

		var priority models.RecommendationPriority
		switch {
		case required && s.Status == models.CoverageMissing:
			priority = models.PriorityHigh
		case required && s.Status == models.CoveragePartial:
			priority = models.PriorityMedium
		default:
			priority = models.PriorityLow
		}

		action := "enhance_documentation"
		message := fmt.Sprintf("%s coverage at %.1f%%. Consider adding more comprehensive documentation.",
			s.LensType, s.CoveragePercentage)
		if s.Status == models.CoverageMissing {
			action = "create_documentation"
			message = fmt.Sprintf("No %s documentation found. Immediate action required.", s.LensType)
		}

		topics := s.MissingTopics
		if len(topics) > 3 {
			topics = topics[:3]
		}

		recs = append(recs, models.Recommendation{
			LensType:           s.LensType,
			Priority:           priority,
			Action:             action,
			Message:            message,
			SuggestedTopics:    topics,
			CoveragePercentage: s.CoveragePercentage,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		pi, pj := priorityRank(recs[i].Priority), priorityRank(recs[j].Priority)
		if pi != pj {
			return pi < pj
		}
		return recs[i].CoveragePercentage < recs[j].CoveragePercentage
	})
	return recs
}

func priorityRank(p models.RecommendationPriority) int {
	switch p {
	case models.PriorityHigh:
		return 0
	case models.PriorityMedium:
		return 1
	default:
		return 2
	}
}
