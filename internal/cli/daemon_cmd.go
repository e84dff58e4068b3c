package cli

import (
	"github.com/ankittk/devcrew/internal/config"
	"github.com/ankittk/devcrew/internal/daemon"
	"github.com/spf13/cobra"
)

func newDaemonCmd(version string) *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			return daemon.StartForeground(cmd.Context(), flags.options(home, version))
		},
	}
	flags.register(cmd)
	return cmd
}
