package tasks

import "github.com/docharvester/docharvester-go/internal/models"

// StepEstimate pairs a step label with its expected duration.
type StepEstimate struct {
	Name    string
	Seconds float64
}

// defaultEstimate applies to task types without a step plan.
const defaultEstimate = 120.0

// Step plans per task type. Names double as progress labels; seconds
// feed the initial ETA before real progress data exists.
var stepPlans = map[models.TaskType][]StepEstimate{
	models.TaskWikiGeneration: {
		{Name: "analyzing_project", Seconds: 15},
		{Name: "extracting_entities", Seconds: 30},
		{Name: "generating_structure", Seconds: 25},
		{Name: "creating_pages", Seconds: 60},
		{Name: "finalizing", Seconds: 10},
	},
	models.TaskEntityExtraction: {
		{Name: "initializing", Seconds: 5},
		{Name: "processing_chunks", Seconds: 45},
		{Name: "storing_entities", Seconds: 20},
		{Name: "creating_relationships", Seconds: 30},
	},
	models.TaskKnowledgeGraphRefresh: {
		{Name: "analyzing_documents", Seconds: 20},
		{Name: "extracting_entities", Seconds: 40},
		{Name: "mapping_relationships", Seconds: 30},
		{Name: "updating_graph", Seconds: 10},
	},
	models.TaskDocumentProcessing: {
		{Name: "loading_document", Seconds: 10},
		{Name: "chunking_and_classifying", Seconds: 60},
		{Name: "storing_chunks", Seconds: 20},
		{Name: "updating_coverage", Seconds: 10},
	},
}

// PlanSteps returns the step plan for a task type, or nil if none.
func PlanSteps(t models.TaskType) []StepEstimate {
	return stepPlans[t]
}

// EstimatedDuration returns the expected total runtime in seconds.
func EstimatedDuration(t models.TaskType) float64 {
	plan, ok := stepPlans[t]
	if !ok {
		return defaultEstimate
	}
	var total float64
	for _, s := range plan {
		total += s.Seconds
	}
	return total
}
