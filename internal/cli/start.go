package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ankittk/devcrew/internal/config"
	"github.com/ankittk/devcrew/internal/daemon"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	port       int
	addr       string
	configPath string
	agent      string
	dev        bool
	pprofAddr  string
	enableOtel bool
}

func (f *serveFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.port, "port", daemon.DefaultPort, "HTTP port when neither --addr nor server.addr is set")
	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address (overrides --port and server.addr)")
	cmd.Flags().StringVar(&f.configPath, "config", "", "System config file (default: HOME/config.yaml)")
	cmd.Flags().StringVar(&f.agent, "agent", "", "Run a single agent by name (env: AGENT_NAME)")
	cmd.Flags().BoolVar(&f.dev, "dev", false, "Enable dev mode (permissive CORS)")
	cmd.Flags().StringVar(&f.pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().BoolVar(&f.enableOtel, "otel", true, "Enable OpenTelemetry metrics (Prometheus exporter on /metrics)")
}

func (f *serveFlags) options(home, version string) daemon.StartOptions {
	return daemon.StartOptions{
		Home:       home,
		ConfigPath: f.configPath,
		Port:       f.port,
		Addr:       f.addr,
		Agent:      f.agent,
		Dev:        f.dev,
		PprofAddr:  f.pprofAddr,
		EnableOtel: f.enableOtel,
		Version:    version,
	}
}

func newStartCmd() *cobra.Command {
	var (
		flags      serveFlags
		foreground bool
		envFile    string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the devcrew daemon and its agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := loadEnvFile(envFile); err != nil {
					return err
				}
			}
			home := config.MustHomeFrom(cmd.Context())
			opts := flags.options(home, cmd.Root().Version)

			if foreground {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting devcrew in foreground (home %s)\n", home)
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "devcrew started (pid %d)\n", pid)
			if st, _ := daemon.Status(cmd.Context(), home); st.Running {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "API: %s\n", daemon.ClientURL(st.Addr))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load env vars from file (KEY=VALUE per line) before starting")
	return cmd
}

func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		_ = os.Setenv(key, strings.Trim(strings.TrimSpace(value), `"`))
	}
	return sc.Err()
}
