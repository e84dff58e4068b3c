package cli

import (
	"fmt"
	"sort"

	"github.com/ankittk/devcrew/pkg/models"
	"github.com/spf13/cobra"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create and track tasks",
	}
	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskFinishCmd(models.TaskCompleted))
	cmd.AddCommand(newTaskFinishCmd(models.TaskFailed))
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		id, title, description, agent, priority, estimate string
		deps, criteria                                     []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Assign a new task to an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" || agent == "" {
				return fmt.Errorf("--title and --agent are required")
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			t, err := c.CreateTask(cmd.Context(), models.Task{
				TaskID:             id,
				Title:              title,
				Description:        description,
				AssignedAgent:      agent,
				AssignedBy:         "cli",
				Priority:           priority,
				EstimatedDuration:  estimate,
				Dependencies:       deps,
				AcceptanceCriteria: criteria,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %s for %s (%s)\n", t.TaskID, t.AssignedAgent, t.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Task ID (default: generated)")
	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&description, "description", "", "Task description")
	cmd.Flags().StringVar(&agent, "agent", "", "Assigned agent")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (default: medium)")
	cmd.Flags().StringVar(&estimate, "estimate", "", "Estimated duration (free text)")
	cmd.Flags().StringSliceVar(&deps, "depends-on", nil, "IDs of tasks this depends on (informational)")
	cmd.Flags().StringSliceVar(&criteria, "criteria", nil, "Acceptance criteria")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			t, err := c.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Task:     %s\n", t.TaskID)
			_, _ = fmt.Fprintf(out, "Title:    %s\n", t.Title)
			_, _ = fmt.Fprintf(out, "Agent:    %s (assigned by %s)\n", t.AssignedAgent, t.AssignedBy)
			_, _ = fmt.Fprintf(out, "Status:   %s\n", t.Status)
			_, _ = fmt.Fprintf(out, "Priority: %s\n", t.Priority)
			if t.Description != "" {
				_, _ = fmt.Fprintf(out, "\n%s\n", t.Description)
			}
			if len(t.AcceptanceCriteria) > 0 {
				_, _ = fmt.Fprintln(out, "\nAcceptance criteria:")
				for _, c := range t.AcceptanceCriteria {
					_, _ = fmt.Fprintf(out, "  - %s\n", c)
				}
			}
			if t.Result != "" {
				_, _ = fmt.Fprintf(out, "\nResult: %s\n", t.Result)
			}
			return nil
		},
	}
}

func newTaskListCmd() *cobra.Command {
	var (
		agent, status string
		limit         int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			tasks, err := c.ListTasks(cmd.Context(), agent, models.TaskStatus(status), limit)
			if err != nil {
				return err
			}
			printTasks(cmd, tasks)
			return nil
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "Only tasks assigned to this agent")
	cmd.Flags().StringVar(&status, "status", "", "Only tasks with this status (assigned, working, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum tasks to list")
	return cmd
}

// newTaskFinishCmd builds `task complete` and `task fail`.
func newTaskFinishCmd(status models.TaskStatus) *cobra.Command {
	use, short := "complete", "Mark a task completed"
	if status == models.TaskFailed {
		use, short = "fail", "Mark a task failed"
	}
	var result string
	cmd := &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			t, err := c.UpdateTask(cmd.Context(), args[0], status, result)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %s %s\n", t.TaskID, t.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&result, "result", "", "Result or failure reason")
	return cmd
}

func printTasks(cmd *cobra.Command, tasks []models.Task) {
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(out, "No tasks.")
		return
	}
	for _, t := range tasks {
		_, _ = fmt.Fprintf(out, "%-36s  %-10s  %-8s  %-12s  %s\n", t.TaskID, t.Status, t.Priority, t.AssignedAgent, t.Title)
	}
}

func sorted(s []string) []string {
	sort.Strings(s)
	return s
}
