package cli

import (
	"fmt"

	"github.com/ankittk/devcrew/internal/config"
	"github.com/ankittk/devcrew/internal/daemon"
	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	var agent string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the devcrew daemon, or a single agent with --agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if agent != "" {
				c, err := apiClient(cmd)
				if err != nil {
					return err
				}
				if err := c.StopAgent(cmd.Context(), agent); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Agent %s stopped\n", agent)
				return nil
			}

			home := config.MustHomeFrom(cmd.Context())
			st, _ := daemon.Status(cmd.Context(), home)
			stopped, err := daemon.Stop(cmd.Context(), home)
			if err != nil {
				return err
			}
			if !stopped {
				_, _ = fmt.Fprintln(out, "devcrew is not running")
				return nil
			}
			_, _ = fmt.Fprintf(out, "Stopped devcrew (pid %d); agents went offline first\n", st.PID)
			return nil
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "Stop only this agent; the daemon keeps running")
	return cmd
}
