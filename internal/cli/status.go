package cli

import (
	"fmt"

	"github.com/ankittk/devcrew/internal/config"
	"github.com/ankittk/devcrew/internal/daemon"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and the state of each agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			out := cmd.OutOrStdout()
			st, err := daemon.Status(cmd.Context(), home)
			if err != nil {
				return err
			}
			if !st.Running {
				_, _ = fmt.Fprintln(out, "devcrew not running")
				return nil
			}
			_, _ = fmt.Fprintf(out, "devcrew running (pid %d, addr %s)\n", st.PID, st.Addr)

			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			agents, err := c.ListAgents(cmd.Context())
			if err != nil {
				// The process is up but not answering yet; the pid line is still useful.
				_, _ = fmt.Fprintf(out, "agents: unavailable (%v)\n", err)
				return nil
			}
			for _, a := range agents {
				_, _ = fmt.Fprintf(out, "  %-16s %-16s %s\n", a.Name, a.Role, a.Status)
			}
			return nil
		},
	}
	return cmd
}
