package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ankittk/devcrew/internal/codehost"
	"github.com/ankittk/devcrew/internal/completion"
	completiongrpc "github.com/ankittk/devcrew/internal/completion/grpc"
	"github.com/ankittk/devcrew/internal/config"
	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/messaging"
)

// Integrations are the collaborators of one agent. Any of them may be nil.
type Integrations struct {
	Messenger messaging.Messenger
	CodeHost  codehost.Client
	Completer completion.Completer
}

// Builder constructs the integrations of a configured agent.
type Builder func(ctx context.Context, ac config.Agent) (Integrations, error)

// NewBuilder wires integrations from the system config and environment
// secrets. A missing credential leaves that integration nil and is logged; an
// invalid selection fails with ErrConfiguration.
func NewBuilder(sys *config.System, sec config.Secrets, log *slog.Logger) Builder {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, ac config.Agent) (Integrations, error) {
		var in Integrations

		c, err := completion.New(ctx, completion.Options{
			Provider: sys.Completion.Provider,
			APIKey:   providerKey(sys.Completion.Provider, sec),
			BaseURL:  sys.Completion.BaseURL,
			Address:  sys.Completion.Address,
			Command:  sys.Completion.Command,
			Args:     sys.Completion.Args,
		}, completiongrpc.Dialer)
		switch {
		case errors.Is(err, errs.ErrIntegrationUnavailable):
			log.Warn("completion unavailable; agent will send fallback replies", "agent", ac.Name, "err", err)
		case err != nil:
			return in, fmt.Errorf("%w: completion: %w", errs.ErrConfiguration, err)
		default:
			in.Completer = c
		}

		username := ac.SlackUsername
		if username == "" {
			username = ac.Name
		}
		m, err := messaging.New(messaging.Options{
			Platform:       sys.Messaging.Platform,
			Username:       username,
			SlackBotToken:  sec.SlackBotToken,
			SlackAppToken:  sec.SlackAppToken,
			DiscordToken:   sec.DiscordBotToken,
			WebhookURL:     sys.Slack.WebhookURL,
			DefaultChannel: sys.DefaultChannel(),
		})
		switch {
		case errors.Is(err, errs.ErrIntegrationUnavailable):
			log.Warn("messaging unavailable", "agent", ac.Name, "err", err)
		case err != nil:
			return in, err
		case m != nil:
			in.Messenger = m
		}

		if sec.GitHubToken != "" {
			var opts []codehost.GitHubOption
			if sys.GitHub.BaseURL != "" {
				opts = append(opts, codehost.WithBaseURL(sys.GitHub.BaseURL))
			}
			gh, err := codehost.NewGitHub(sec.GitHubToken, opts...)
			if err != nil {
				return in, fmt.Errorf("%w: github: %w", errs.ErrConfiguration, err)
			}
			in.CodeHost = gh
		}
		return in, nil
	}
}

func providerKey(provider string, sec config.Secrets) string {
	switch strings.ToLower(provider) {
	case "openai":
		return sec.OpenAIKey
	case "anthropic":
		return sec.AnthropicKey
	case "gemini":
		return sec.GeminiKey
	}
	return ""
}
