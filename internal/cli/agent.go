package cli

import (
	"fmt"
	"strings"

	"github.com/ankittk/devcrew/pkg/models"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Inspect and control agents",
	}
	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentShowCmd())
	cmd.AddCommand(newAgentLifecycleCmd("start", "Start an agent"))
	cmd.AddCommand(newAgentLifecycleCmd("stop", "Stop an agent"))
	cmd.AddCommand(newAgentLifecycleCmd("restart", "Restart an agent, keeping its context"))
	cmd.AddCommand(newAgentTasksCmd())
	cmd.AddCommand(newAgentSayCmd())
	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			agents, err := c.ListAgents(cmd.Context())
			if err != nil {
				return err
			}
			if len(agents) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No agents.")
				return nil
			}
			for _, a := range agents {
				enabled := ""
				if !a.Enabled {
					enabled = " (disabled)"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %s (%s) %s%s\n", a.Name, a.Role, a.Status, enabled)
			}
			return nil
		},
	}
}

func newAgentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show an agent's status and health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			rep, err := c.AgentStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Agent:   %s\n", rep.Name)
			_, _ = fmt.Fprintf(out, "Status:  %s\n", rep.Status)
			if rep.CurrentTask != nil {
				_, _ = fmt.Fprintf(out, "Task:    %s\n", *rep.CurrentTask)
			}
			if rep.LastActivity != nil {
				_, _ = fmt.Fprintf(out, "Active:  %s\n", rep.LastActivity.Format("2006-01-02 15:04:05"))
			}
			if rep.Status != models.AgentNotRunning {
				_, _ = fmt.Fprintf(out, "Context: %d entries\n", rep.ContextWindowSize)
			}
			if h := rep.Health; h != nil {
				var on []string
				for name, ok := range h.Integrations {
					if ok {
						on = append(on, name)
					}
				}
				_, _ = fmt.Fprintf(out, "Uptime:  %.0fs\n", h.UptimeSeconds)
				_, _ = fmt.Fprintf(out, "Integrations: %s\n", strings.Join(sorted(on), ", "))
			}
			return nil
		},
	}
}

func newAgentLifecycleCmd(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " NAME",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			switch verb {
			case "start":
				err = c.StartAgent(ctx, args[0])
			case "stop":
				err = c.StopAgent(ctx, args[0])
			default:
				err = c.RestartAgent(ctx, args[0])
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s ok\n", args[0], verb)
			return nil
		},
	}
}

func newAgentTasksCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "tasks NAME",
		Short: "List tasks assigned to an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			tasks, err := c.AgentTasks(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			printTasks(cmd, tasks)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum tasks to list")
	return cmd
}

func newAgentSayCmd() *cobra.Command {
	var (
		channel string
		typ     string
	)
	cmd := &cobra.Command{
		Use:   "say NAME MESSAGE...",
		Short: "Send a message to a running agent and print its reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			reply, err := c.SendMessage(cmd.Context(), args[0], models.Message{
				Text:    strings.Join(args[1:], " "),
				Channel: channel,
				Sender:  "cli",
				Type:    models.RequestType(typ),
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Channel the message is attributed to")
	cmd.Flags().StringVar(&typ, "type", "", "Request type (e.g. status_update, code_review)")
	return cmd
}
