package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchLens  string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <project> <query>",
	Short: "Search project chunks without LLM synthesis",
	Long: `Search project documentation using hybrid BM25 + vector search.

Returns matching chunks ranked by relevance.

Examples:
  docharvester search my-project "deployment pipeline"
  docharvester search my-project "pricing tiers" --lens GTM
  docharvester search my-project "retry policy" --limit 5`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchLens, "lens", "l", "", "filter by lens type (LOGIC, SOP, GTM, CL)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "max results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	projectID, query := args[0], args[1]

	results, err := api.Search(context.Background(), projectID, query, strings.ToUpper(searchLens), searchLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(results))
	for i, chunk := range results {
		lens := "unclassified"
		if chunk.LensType != nil {
			lens = string(*chunk.LensType)
		}
		fmt.Printf("%d. %s [%s, chunk %d]\n", i+1, chunk.DocumentID, lens, chunk.ChunkIndex)

		text := strings.TrimSpace(chunk.Text)
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		fmt.Printf("   %s\n", strings.ReplaceAll(text, "\n", " "))
		if verbose && chunk.ConfidenceScore != nil {
			fmt.Printf("   Confidence: %.2f\n", *chunk.ConfidenceScore)
		}
		fmt.Println()
	}

	return nil
}
