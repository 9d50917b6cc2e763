package llm

import (
	"strings"

	"github.com/docharvester/docharvester-go/internal/models"
)

// Keyword catalogs for rule-based classification.
var lensKeywords = map[models.LensType][]string{
	models.LensLogic: {
		"architecture", "implementation", "algorithm", "system", "design",
		"component", "module", "function", "class", "api", "database", "schema",
	},
	models.LensSOP: {
		"step", "guide", "tutorial", "how to", "instruction", "procedure",
		"click", "navigate", "user", "setup", "configure",
	},
	models.LensGTM: {
		"market", "sales", "customer", "competitor", "pricing", "strategy",
		"positioning", "value proposition", "target audience",
	},
	models.LensCL: {
		"changelog", "release", "version", "bug", "fix", "feature",
		"improvement", "feedback", "issue", "update",
	},
}

// RuleBasedClassify scores text by keyword hits per lens. Confidence is
// 0.15 per matched keyword capped at 0.9, or 0.3 when nothing matches.
func RuleBasedClassify(text string) (models.LensType, float64) {
	lower := strings.ToLower(text)

	best := models.LensLogic
	bestScore := 0
	for _, lens := range models.AllLensTypes {
		score := 0
		for _, kw := range lensKeywords[lens] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = lens
			bestScore = score
		}
	}

	if bestScore == 0 {
		return best, 0.3
	}

	confidence := float64(bestScore) * 0.15
	if confidence > 0.9 {
		confidence = 0.9
	}
	return best, confidence
}
