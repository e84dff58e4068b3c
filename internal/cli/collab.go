package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ankittk/devcrew/pkg/models"
	"github.com/spf13/cobra"
)

func newCollabCmd() *cobra.Command {
	var (
		from, typ, priority string
	)
	cmd := &cobra.Command{
		Use:   "collab TARGET DESCRIPTION...",
		Short: "Ask an agent for help on behalf of another (default: first running agent)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := models.ParseRequestType(typ); !ok {
				return fmt.Errorf("unknown request type %q (one of %s)", typ, requestTypeNames())
			}
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			by, err := c.RequestCollaboration(cmd.Context(), models.CollaborationRequest{
				Requester:   from,
				TargetAgent: args[0],
				RequestType: models.RequestType(typ),
				Description: strings.Join(args[1:], " "),
				Priority:    priority,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s asked %s for %s\n", by, args[0], typ)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Requesting agent (must be running)")
	cmd.Flags().StringVar(&typ, "type", "collaboration_request", "Request type")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (default: medium)")
	return cmd
}

func requestTypeNames() string {
	names := make([]string, len(models.RequestTypes))
	for i, t := range models.RequestTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts from the state store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			s, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "agent states: %d\n", s.AgentStates)
			_, _ = fmt.Fprintf(out, "tasks:        %d\n", s.Tasks)
			statuses := make([]string, 0, len(s.TasksByStatus))
			for st := range s.TasksByStatus {
				statuses = append(statuses, st)
			}
			sort.Strings(statuses)
			for _, st := range statuses {
				_, _ = fmt.Fprintf(out, "  %-12s %d\n", st, s.TasksByStatus[st])
			}
			_, _ = fmt.Fprintf(out, "activities:   %d\n", s.Activities)
			return nil
		},
	}
}
