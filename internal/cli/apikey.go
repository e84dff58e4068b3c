package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const apiKeyEnv = "DEVCREW_API_KEY"

func newApikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Generate an API key for the HTTP facade (sent as X-API-Key)",
	}
	cmd.AddCommand(newApikeyGenerateCmd())
	return cmd
}

func newApikeyGenerateCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random API key and print how to use it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := generateKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Generated API key (save it somewhere safe):\n\n  %s\n\n", key)

			if envFile != "" {
				if err := upsertEnv(envFile, apiKeyEnv, key); err != nil {
					return fmt.Errorf("write %s: %w", envFile, err)
				}
				_, _ = fmt.Fprintf(out, "Set %s in %s\n", apiKeyEnv, envFile)
				_, _ = fmt.Fprintf(out, "Start the server with: devcrew start --foreground --env-file %s\n", envFile)
				return nil
			}
			_, _ = fmt.Fprintf(out, "Server: export %s=%s (or server.api_key in config.yaml)\n", apiKeyEnv, key)
			_, _ = fmt.Fprintf(out, "Clients: send header X-API-Key: <key>, query ?api_key=<key>, or devcrew --api-key\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "Set "+apiKeyEnv+" in this file (e.g. .env), replacing an existing value")
	return cmd
}

func generateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// upsertEnv sets name=value in a dotenv file, keeping other lines as they are.
func upsertEnv(path, name, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	}
	entry := name + "=" + value
	replaced := false
	for i, l := range lines {
		if k, _, ok := strings.Cut(strings.TrimSpace(l), "="); ok && strings.TrimSpace(strings.TrimPrefix(k, "export ")) == name {
			lines[i] = entry
			replaced = true
		}
	}
	if !replaced {
		lines = append(lines, entry)
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600)
}
