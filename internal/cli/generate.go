package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate <project>",
	Short: "Generate documentation for under-covered lenses",
	Long: `Queue a generation task that creates synthetic documentation for
lenses below complete coverage.

Examples:
  docharvester generate my-project
  docharvester generate my-project --lens GTM --lens CL
  docharvester generate my-project --force    # regenerate complete lenses too`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var (
	generateLenses []string
	generateForce  bool
	generateWatch  bool
)

func init() {
	generateCmd.Flags().StringArrayVar(&generateLenses, "lens", nil, "lens types to generate (default: all below complete)")
	generateCmd.Flags().BoolVar(&generateForce, "force", false, "regenerate even when coverage is complete")
	generateCmd.Flags().BoolVarP(&generateWatch, "watch", "w", true, "watch task progress")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	task, err := api.Generate(context.Background(), args[0], generateLenses, generateForce)
	if err != nil {
		return fmt.Errorf("submit generation: %w", err)
	}

	fmt.Printf("Generation task %s started\n", task.ID)
	if generateWatch {
		return RunTaskProgress(api, task)
	}
	return nil
}
