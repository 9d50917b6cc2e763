package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docharvester/docharvester-go/internal/models"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage <project>",
	Short: "Show a project's coverage report",
	Long: `Show per-lens coverage status, overall percentage, and ranked
recommendations for a project.

Examples:
  docharvester coverage my-project
  docharvester coverage my-project --check    # queue a fresh check first
  docharvester coverage my-project --cached   # last persisted check, no recompute`,
	Args: cobra.ExactArgs(1),
	RunE: runCoverage,
}

var (
	coverageCheck  bool
	coverageCached bool
)

func init() {
	coverageCmd.Flags().BoolVar(&coverageCheck, "check", false, "queue a background coverage check")
	coverageCmd.Flags().BoolVar(&coverageCached, "cached", false, "show the last persisted check instead of recomputing")
}

func runCoverage(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	projectID := args[0]

	if coverageCached {
		return showCachedCoverage(ctx, projectID)
	}

	if coverageCheck {
		queued, err := api.TriggerCheck(ctx, projectID)
		if err != nil {
			return fmt.Errorf("trigger check: %w", err)
		}
		if queued {
			fmt.Println("Coverage check queued")
		} else {
			fmt.Println("Coverage check already running")
		}
	}

	report, err := api.GetCoverageStatus(ctx, projectID)
	if err != nil {
		return fmt.Errorf("get coverage: %w", err)
	}

	fmt.Printf("Coverage for %s: %.1f%%\n\n", projectID, report.Overall)
	fmt.Printf("%-8s %-10s %-10s %-8s %s\n", "LENS", "STATUS", "COVERAGE", "DOCS", "CHUNKS")
	fmt.Println("------------------------------------------------------")
	for _, status := range report.Statuses {
		fmt.Printf("%-8s %-10s %-10s %-8d %d\n",
			status.LensType, status.Status,
			fmt.Sprintf("%.0f%%", status.CoveragePercentage),
			status.DocumentCount, status.ChunkCount)
	}

	if len(report.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range report.Recommendations {
			fmt.Printf("  [%s] %s: %s\n", rec.Priority, rec.LensType, rec.Message)
			if len(rec.SuggestedTopics) > 0 {
				fmt.Printf("         topics: %s\n", strings.Join(rec.SuggestedTopics, ", "))
			}
		}
	}
	return nil
}

func showCachedCoverage(ctx context.Context, projectID string) error {
	statuses, err := api.GetCoverageSnapshot(ctx, projectID)
	if err != nil {
		return fmt.Errorf("get coverage snapshot: %w", err)
	}
	if len(statuses) == 0 {
		fmt.Println("No coverage check has run yet; use --check to queue one")
		return nil
	}

	fmt.Printf("Last coverage check for %s (%s)\n\n",
		projectID, statuses[0].LastChecked.Format("2006-01-02 15:04:05"))
	fmt.Printf("%-8s %-10s %-10s %-8s %s\n", "LENS", "STATUS", "COVERAGE", "DOCS", "CHUNKS")
	fmt.Println("------------------------------------------------------")
	for _, status := range statuses {
		fmt.Printf("%-8s %-10s %-10s %-8d %d\n",
			status.LensType, status.Status,
			fmt.Sprintf("%.0f%%", status.CoveragePercentage),
			status.DocumentCount, status.ChunkCount)
	}
	return nil
}

var requirementsCmd = &cobra.Command{
	Use:   "requirements <project>",
	Short: "Show or update coverage requirements",
	Long: `Show a project's per-lens coverage requirements, or update one lens
with --set.

Examples:
  docharvester requirements my-project
  docharvester requirements my-project --set GTM --required --min-docs 5
  docharvester requirements my-project --set CL --min-docs 2`,
	Args: cobra.ExactArgs(1),
	RunE: runRequirements,
}

var (
	reqSetLens  string
	reqRequired bool
	reqMinDocs  int
)

func init() {
	requirementsCmd.Flags().StringVar(&reqSetLens, "set", "", "lens type to update (LOGIC, SOP, GTM, CL)")
	requirementsCmd.Flags().BoolVar(&reqRequired, "required", false, "mark the lens as required")
	requirementsCmd.Flags().IntVar(&reqMinDocs, "min-docs", 1, "minimum document count")
}

func runRequirements(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	projectID := args[0]

	if reqSetLens != "" {
		lens := models.LensType(strings.ToUpper(reqSetLens))
		req, err := api.SetRequirement(ctx, projectID, lens, reqRequired, reqMinDocs)
		if err != nil {
			return fmt.Errorf("set requirement: %w", err)
		}
		fmt.Printf("Updated %s: required=%t min_documents=%d\n", req.LensType, req.IsRequired, req.MinDocuments)
		return nil
	}

	reqs, err := api.GetRequirements(ctx, projectID)
	if err != nil {
		return fmt.Errorf("get requirements: %w", err)
	}

	fmt.Printf("%-8s %-10s %s\n", "LENS", "REQUIRED", "MIN DOCS")
	fmt.Println("------------------------------")
	for _, req := range reqs {
		fmt.Printf("%-8s %-10t %d\n", req.LensType, req.IsRequired, req.MinDocuments)
	}
	return nil
}
