package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <task-id>",
	Short: "Watch a task's progress",
	Long: `Follow a running task with a live progress bar.

Press Ctrl+C to detach; the task keeps running on the server.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	task, err := api.GetTask(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	return RunTaskProgress(api, task)
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task",
	Long: `Request cancellation of a task.

A pending task is cancelled immediately. A running task stops at the
next step boundary.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	task, err := api.CancelTask(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}
	if task.CancelRequested && !task.Status.Terminal() {
		fmt.Printf("Cancellation requested; task %s will stop at the next step boundary\n", task.ID)
	} else {
		fmt.Printf("Task %s is now %s\n", task.ID, task.Status)
	}
	return nil
}
