// Package models defines data structures for the DocHarvester coverage engine.
package models

// LensType is a content category used to classify document chunks and
// drive per-project coverage requirements.
type LensType string

const (
	// LensLogic covers technical documentation: architecture,
	// implementation details, algorithms, system design.
	LensLogic LensType = "LOGIC"

	// LensSOP covers user guides, step-by-step instructions,
	// tutorials and operational procedures.
	LensSOP LensType = "SOP"

	// LensGTM covers marketing material, positioning, competitive
	// analysis and go-to-market strategy.
	LensGTM LensType = "GTM"

	// LensCL covers changelogs, release notes, retrospectives and
	// user feedback.
	LensCL LensType = "CL"
)

// AllLensTypes lists every known lens in canonical order.
var AllLensTypes = []LensType{LensLogic, LensSOP, LensGTM, LensCL}

// ValidLensType reports whether lens names a known lens.
func ValidLensType(lens LensType) bool {
	for _, l := range AllLensTypes {
		if l == lens {
			return true
		}
	}
	return false
}

// LensDescriptions are the category definitions given to the
// classification collaborator.
var LensDescriptions = map[LensType]string{
	LensLogic: "Technical documentation explaining how the product works, architecture, implementation details, algorithms, and system design",
	LensSOP:   "User guides, step-by-step instructions, tutorials, how-to documentation, and operational procedures",
	LensGTM:   "Marketing materials, sales decks, product positioning, competitive analysis, and go-to-market strategies",
	LensCL:    "Changelogs, release notes, retrospectives, user feedback, bug reports, and feature requests",
}
