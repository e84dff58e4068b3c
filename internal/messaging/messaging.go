// Package messaging connects agents to chat platforms. Each Messenger owns one
// session; inbound messages are pushed to a Handler and its reply is posted in-thread.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/ankittk/devcrew/internal/errs"
)

// Inbound is one message received from a platform, already sanitized.
type Inbound struct {
	Platform string
	Channel  string
	Thread   string
	Sender   string
	Text     string
}

// Handler answers an inbound message. An empty reply posts nothing.
type Handler func(ctx context.Context, msg Inbound) string

// Messenger is a chat platform session.
type Messenger interface {
	Name() string
	// Start opens the session and begins delivering inbound messages to h.
	Start(ctx context.Context, h Handler) error
	Stop(ctx context.Context) error
	// Send posts text to channel, as a thread reply when thread is set.
	Send(ctx context.Context, channel, text, thread string) error
}

// Options selects and configures a platform.
type Options struct {
	Platform       string // slack, discord, webhook, none
	Username       string
	SlackBotToken  string
	SlackAppToken  string
	DiscordToken   string
	WebhookURL     string
	DefaultChannel string
}

// New builds the messenger for opts.Platform. Platform "none" (or empty) yields nil, nil.
func New(opts Options) (Messenger, error) {
	switch strings.ToLower(opts.Platform) {
	case "", "none":
		return nil, nil
	case "slack":
		if opts.SlackBotToken == "" {
			return nil, fmt.Errorf("%w: SLACK_BOT_TOKEN not set", errs.ErrIntegrationUnavailable)
		}
		return NewSlack(opts.SlackBotToken, opts.SlackAppToken, opts.Username), nil
	case "discord":
		if opts.DiscordToken == "" {
			return nil, fmt.Errorf("%w: DISCORD_BOT_TOKEN not set", errs.ErrIntegrationUnavailable)
		}
		return NewDiscord(opts.DiscordToken)
	case "webhook":
		if opts.WebhookURL == "" {
			return nil, fmt.Errorf("%w: webhook url not set", errs.ErrIntegrationUnavailable)
		}
		return &Webhook{URL: opts.WebhookURL, Username: opts.Username}, nil
	}
	return nil, fmt.Errorf("%w: unknown messaging platform %q", errs.ErrConfiguration, opts.Platform)
}
