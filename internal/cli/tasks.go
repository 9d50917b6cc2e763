package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docharvester/docharvester-go/internal/tasks"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks <project>",
	Short: "List a project's active tasks",
	Long: `List all pending and running tasks for a project.

Examples:
  docharvester tasks my-project
  docharvester tasks my-project --all           # completed and failed too
  docharvester tasks my-project --task abc12345`,
	Args: cobra.ExactArgs(1),
	RunE: runTasks,
}

var (
	tasksTaskID string
	tasksAll    bool
	tasksLimit  int
)

func init() {
	tasksCmd.Flags().StringVar(&tasksTaskID, "task", "", "show details for one task instead")
	tasksCmd.Flags().BoolVar(&tasksAll, "all", false, "include completed, failed and cancelled tasks")
	tasksCmd.Flags().IntVar(&tasksLimit, "limit", 0, "cap the task count with --all (default 50)")
}

func runTasks(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if tasksTaskID != "" {
		return showTask(ctx, tasksTaskID)
	}

	var (
		listed []tasks.Snapshot
		err    error
	)
	if tasksAll {
		listed, err = api.TaskHistory(ctx, args[0], tasksLimit)
	} else {
		listed, err = api.ListActiveTasks(ctx, args[0])
	}
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(listed) == 0 {
		if tasksAll {
			fmt.Println("No tasks")
		} else {
			fmt.Println("No active tasks")
		}
		return nil
	}

	fmt.Printf("%-10s %-24s %-10s %-10s %s\n", "ID", "TYPE", "STATUS", "PROGRESS", "STEP")
	fmt.Println("------------------------------------------------------------------------")
	for _, task := range listed {
		fmt.Printf("%-10s %-24s %-10s %-10s %s\n",
			task.ID, task.TaskType, task.Status,
			fmt.Sprintf("%.0f%%", task.ProgressPercentage), task.CurrentStep)
	}
	return nil
}

func showTask(ctx context.Context, id string) error {
	task, err := api.GetTask(ctx, id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	fmt.Printf("Task: %s\n", task.ID)
	fmt.Printf("  Type: %s\n", task.TaskType)
	fmt.Printf("  Project: %s\n", task.ProjectID)
	fmt.Printf("  Status: %s\n", task.Status)
	fmt.Printf("  Progress: %.0f%% (%d/%d steps)\n", task.ProgressPercentage, task.CompletedSteps, task.TotalSteps)
	if task.CurrentStep != "" {
		fmt.Printf("  Current step: %s\n", task.CurrentStep)
	}
	if task.StartedAt != nil {
		fmt.Printf("  Started: %s\n", task.StartedAt.Format(time.RFC3339))
	}
	if task.RemainingTimeSeconds != nil {
		fmt.Printf("  Remaining: ~%s\n", formatSeconds(*task.RemainingTimeSeconds))
	}
	if task.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", task.CompletedAt.Format(time.RFC3339))
	}
	if task.ErrorMessage != "" {
		fmt.Printf("  Error: %s\n", task.ErrorMessage)
	}
	if len(task.ResultData) > 0 {
		fmt.Println("\nResult:")
		for key, value := range task.ResultData {
			fmt.Printf("  %s: %v\n", key, value)
		}
	}
	return nil
}
