package messaging

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// Webhook posts to a Slack incoming-webhook URL. It is outbound only.
type Webhook struct {
	URL      string
	Username string // optional
	Client   *http.Client
}

func (w *Webhook) Name() string { return "webhook" }

// Start is a no-op; webhooks cannot receive.
func (w *Webhook) Start(context.Context, Handler) error { return nil }

func (w *Webhook) Stop(context.Context) error { return nil }

func (w *Webhook) Send(ctx context.Context, channel, text, thread string) error {
	if w.URL == "" {
		return fmt.Errorf("webhook URL not set")
	}
	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	msg := &slack.WebhookMessage{
		Text:            text,
		Channel:         channel,
		ThreadTimestamp: thread,
		Username:        w.Username,
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, w.URL, client, msg); err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	return nil
}
