package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ankittk/devcrew/internal/config"
	"github.com/spf13/cobra"
)

// errChecksFailed is returned by doctor after it has printed every problem.
var errChecksFailed = errors.New("doctor checks failed")

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the config and that credentials exist for the selected integrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			sys, err := config.Load(config.Path(home))
			if err != nil {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), err)
				return errChecksFailed
			}
			problems := doctorProblems(sys, config.SecretsFromEnv())
			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errChecksFailed
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	return cmd
}

// doctorProblems lists integrations that are selected but will come up unavailable.
func doctorProblems(sys *config.System, sec config.Secrets) []string {
	var problems []string
	missing := func(what, env string) {
		problems = append(problems, fmt.Sprintf("%s selected but %s is not set", what, env))
	}
	switch strings.ToLower(sys.Messaging.Platform) {
	case "slack":
		if sec.SlackBotToken == "" {
			missing("messaging platform slack", "SLACK_BOT_TOKEN")
		}
		if sec.SlackAppToken == "" {
			missing("messaging platform slack", "SLACK_APP_TOKEN")
		}
	case "discord":
		if sec.DiscordBotToken == "" {
			missing("messaging platform discord", "DISCORD_BOT_TOKEN")
		}
	case "webhook":
		if sys.Slack.WebhookURL == "" {
			missing("messaging platform webhook", "slack.webhook_url")
		}
	}
	switch strings.ToLower(sys.Completion.Provider) {
	case "openai":
		if sec.OpenAIKey == "" {
			missing("completion provider openai", "OPENAI_API_KEY")
		}
	case "anthropic":
		if sec.AnthropicKey == "" {
			missing("completion provider anthropic", "ANTHROPIC_API_KEY")
		}
	case "gemini":
		if sec.GeminiKey == "" {
			missing("completion provider gemini", "GEMINI_API_KEY")
		}
	}
	switch strings.ToLower(sys.Database.Driver) {
	case "postgres", "mysql", "redis":
		if sys.Database.DSN == "" && sec.DatabaseURL == "" {
			missing("database driver "+sys.Database.Driver, "database.dsn or DATABASE_URL")
		}
	}
	if sys.GitHub.DefaultRepo != "" && sec.GitHubToken == "" {
		missing("github.default_repo", "GITHUB_TOKEN")
	}
	return problems
}
