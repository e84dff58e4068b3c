package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Slack talks to a workspace through the Web API and, when an app token is
// present, receives mentions and direct messages over Socket Mode.
type Slack struct {
	api      *slack.Client
	appToken string
	username string

	mu        sync.Mutex
	botUserID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSlack builds a Slack messenger. appToken may be empty for outbound-only use.
func NewSlack(botToken, appToken, username string) *Slack {
	opts := []slack.Option{}
	if appToken != "" {
		opts = append(opts, slack.OptionAppLevelToken(appToken))
	}
	return &Slack{api: slack.New(botToken, opts...), appToken: appToken, username: username}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Start(ctx context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	auth, err := s.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUserID = auth.UserID
	if s.appToken == "" || h == nil {
		return nil
	}
	client := socketmode.New(s.api)
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		if err := client.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			slog.Warn("slack socket mode stopped", "err", err)
		}
	}()
	go s.loop(runCtx, client, h)
	return nil
}

func (s *Slack) loop(ctx context.Context, client *socketmode.Client, h Handler) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-client.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			api, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			if evt.Request != nil {
				client.Ack(*evt.Request)
			}
			if api.Type != slackevents.CallbackEvent {
				continue
			}
			msg, ok := s.inbound(api.InnerEvent.Data)
			if !ok {
				continue
			}
			if reply := h(ctx, msg); reply != "" {
				if err := s.Send(ctx, msg.Channel, reply, msg.Thread); err != nil {
					slog.Warn("slack reply failed", "channel", msg.Channel, "err", err)
				}
			}
		}
	}
}

// inbound accepts app mentions and direct messages from humans.
func (s *Slack) inbound(data any) (Inbound, bool) {
	switch ev := data.(type) {
	case *slackevents.AppMentionEvent:
		return Inbound{Platform: "slack", Channel: ev.Channel, Thread: firstNonEmpty(ev.ThreadTimeStamp, ev.TimeStamp), Sender: ev.User, Text: Sanitize(ev.Text)}, true
	case *slackevents.MessageEvent:
		if ev.BotID != "" || ev.SubType != "" || ev.User == "" || ev.User == s.botUserID || ev.ChannelType != "im" {
			return Inbound{}, false
		}
		return Inbound{Platform: "slack", Channel: ev.Channel, Thread: ev.ThreadTimeStamp, Sender: ev.User, Text: Sanitize(ev.Text)}, true
	}
	return Inbound{}, false
}

func (s *Slack) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *Slack) Send(ctx context.Context, channel, text, thread string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if thread != "" {
		opts = append(opts, slack.MsgOptionTS(thread))
	}
	if s.username != "" {
		opts = append(opts, slack.MsgOptionUsername(s.username))
	}
	if _, _, err := s.api.PostMessageContext(ctx, channel, opts...); err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
