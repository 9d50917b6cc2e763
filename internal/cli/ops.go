package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docharvester/docharvester-go/internal/tasks"
)

var extractCmd = &cobra.Command{
	Use:   "extract <project>",
	Short: "Extract entities from classified chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjectTask(args[0], "extraction", api.Extract)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <project>",
	Short: "Rebuild the knowledge graph from project content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjectTask(args[0], "graph refresh", api.Refresh)
	},
}

var wikiCmd = &cobra.Command{
	Use:   "wiki <project>",
	Short: "Generate a wiki from project documentation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjectTask(args[0], "wiki generation", api.GenerateWiki)
	},
}

var opsWatch bool

func init() {
	for _, c := range []*cobra.Command{extractCmd, refreshCmd, wikiCmd} {
		c.Flags().BoolVarP(&opsWatch, "watch", "w", true, "watch task progress")
	}
}

func runProjectTask(projectID, label string, submit func(context.Context, string) (*tasks.Snapshot, error)) error {
	task, err := submit(context.Background(), projectID)
	if err != nil {
		return fmt.Errorf("submit %s: %w", label, err)
	}

	fmt.Printf("Started %s task %s\n", label, task.ID)
	if opsWatch {
		return RunTaskProgress(api, task)
	}
	return nil
}
