// Package cli implements the devcrew command line: daemon control plus agent,
// task and collaboration commands that talk to the daemon over HTTP.
package cli

import (
	"os"

	"github.com/ankittk/devcrew/internal/config"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	var homeOverride string
	if version == "" {
		version = "dev"
	}

	cmd := &cobra.Command{
		Use:          "devcrew",
		Short:        "devcrew - a team of role-bound development agents",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.ResolveHome(homeOverride)
			if err != nil {
				return err
			}
			cmd.SetContext(config.WithHome(cmd.Context(), home))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&homeOverride, "home", "", "Override devcrew home directory (default: ~/.devcrew, env: DEVCREW_HOME)")
	cmd.PersistentFlags().String("url", "", "Daemon base URL (default: address recorded by the running daemon, env: DEVCREW_URL)")
	cmd.PersistentFlags().String("api-key", "", "API key for the daemon (env: DEVCREW_API_KEY)")

	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())

	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newCollabCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newApikeyCmd())
	cmd.AddCommand(newNukeCmd())
	cmd.AddCommand(newVersionCmd(version))

	// Hidden internal subcommand used by `devcrew start` for background mode.
	cmd.AddCommand(newDaemonCmd(version))

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.Version = version

	return cmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the devcrew version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(version + "\n"))
			return err
		},
	}
}
