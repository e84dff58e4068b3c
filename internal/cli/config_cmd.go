package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ankittk/devcrew/internal/config"
	"github.com/ankittk/devcrew/internal/memory"
	"github.com/spf13/cobra"
)

const sampleConfig = `name: devcrew
version: "0.1.0"
environment: development

database:
  driver: sqlite

completion:
  provider: stub        # openai, anthropic, gemini, grpc, subprocess
  model: gpt-4o-mini
  max_tokens: 1000
  temperature: 0.7

messaging:
  platform: none        # slack, discord, webhook
  default_channel: "#dev-team"

server:
  addr: 127.0.0.1:8000

logging:
  level: info

agents:
  - name: alice
    role: backend
    personality: methodical and precise
    job_description: Builds APIs and services.
  - name: bob
    role: qa
    personality: curious and thorough
    job_description: Tests features and reports bugs.
`

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and check the system config",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func configPathFlag(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	if p != "" {
		return p
	}
	return config.Path(config.MustHomeFrom(cmd.Context()))
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample config and agent directories under home",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			path := configPathFlag(cmd)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
				return err
			}
			sys, err := config.Parse([]byte(sampleConfig))
			if err != nil {
				return err
			}
			for _, name := range sys.AgentNames() {
				if err := memory.EnsureAgentDir(home, name); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().String("config", "", "Config file (default: HOME/config.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate the system config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPathFlag(cmd)
			sys, err := config.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s: ok\n", path)
			for _, a := range sys.Agents {
				state := "enabled"
				if !a.IsEnabled() {
					state = "disabled"
				}
				_, _ = fmt.Fprintf(out, "  %-16s %-16s %s\n", a.Name, a.ParsedRole(), state)
			}
			return nil
		},
	}
	cmd.Flags().String("config", "", "Config file (default: HOME/config.yaml)")
	return cmd
}
