package cli

import (
	"errors"
	"os"

	"github.com/ankittk/devcrew/internal/config"
	"github.com/ankittk/devcrew/internal/daemon"
	"github.com/ankittk/devcrew/pkg/client"
	"github.com/spf13/cobra"
)

var errDaemonDown = errors.New("devcrew is not running (start it with: devcrew start)")

// apiClient builds a client for the daemon: --url, then DEVCREW_URL, then the
// address the running daemon recorded under home.
func apiClient(cmd *cobra.Command) (*client.Client, error) {
	key, _ := cmd.Flags().GetString("api-key")
	if key == "" {
		key = config.SecretsFromEnv().APIKey
	}
	base, _ := cmd.Flags().GetString("url")
	if base == "" {
		base = os.Getenv("DEVCREW_URL")
	}
	if base == "" {
		st, err := daemon.Status(cmd.Context(), config.MustHomeFrom(cmd.Context()))
		if err != nil {
			return nil, err
		}
		if !st.Running || st.Addr == "unknown" {
			return nil, errDaemonDown
		}
		base = daemon.ClientURL(st.Addr)
	}
	return client.New(base, key), nil
}
