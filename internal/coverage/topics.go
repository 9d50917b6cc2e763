package coverage

import "github.com/docharvester/docharvester-go/internal/models"

// Topic suggestion catalogs per lens. The coverage engine carries these
// through to callers; it does not model topics itself.
var lensTopics = map[models.LensType][]string{
	models.LensLogic: {
		"Business process workflows",
		"Decision trees and logic flows",
		"System integration points",
		"Data transformation rules",
		"Error handling procedures",
	},
	models.LensSOP: {
		"Standard operating procedures",
		"Quality control checklists",
		"Emergency response protocols",
		"Training and onboarding guides",
		"Compliance documentation",
	},
	models.LensGTM: {
		"Market analysis and positioning",
		"Product launch strategies",
		"Sales enablement materials",
		"Competitive analysis",
		"Customer success playbooks",
	},
	models.LensCL: {
		"Equipment maintenance procedures",
		"Route optimization guidelines",
		"Facility operations manual",
		"Safety and compliance protocols",
		"Inventory management processes",
	},
}

// SuggestTopics returns up to (requiredDocs - currentDocs) suggested
// documentation topics for a lens with a coverage gap. Returns nil when
// the requirement is already met.
func SuggestTopics(lens models.LensType, currentDocs, requiredDocs int) []string {
	if currentDocs >= requiredDocs {
		return nil
	}

	topics, ok := lensTopics[lens]
	if !ok {
		topics = []string{"General documentation"}
	}

	needed := requiredDocs - currentDocs
	if needed > len(topics) {
		needed = len(topics)
	}
	out := make([]string, needed)
	copy(out, topics[:needed])
	return out
}
