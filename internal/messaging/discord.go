package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Discord is a bot session. Inbound messages are those that mention the bot
// or arrive by direct message.
type Discord struct {
	session *discordgo.Session

	mu      sync.Mutex
	open    bool
	removeH func()
}

// NewDiscord builds a Discord messenger from a bot token.
func NewDiscord(token string) (*Discord, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	return &Discord{session: dg}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Start(ctx context.Context, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return nil
	}
	if h != nil {
		d.removeH = d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
			selfID := ""
			if s.State != nil && s.State.User != nil {
				selfID = s.State.User.ID
			}
			msg, ok := discordInbound(m, selfID)
			if !ok {
				return
			}
			if reply := h(context.Background(), msg); reply != "" {
				if err := d.Send(context.Background(), msg.Channel, reply, msg.Thread); err != nil {
					slog.Warn("discord reply failed", "channel", msg.Channel, "err", err)
				}
			}
		})
	}
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	d.open = true
	return nil
}

func discordInbound(m *discordgo.MessageCreate, selfID string) (Inbound, bool) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot || m.Author.ID == selfID {
		return Inbound{}, false
	}
	direct := m.GuildID == ""
	mentioned := false
	for _, u := range m.Mentions {
		if u != nil && u.ID == selfID {
			mentioned = true
			break
		}
	}
	if !direct && !mentioned {
		return Inbound{}, false
	}
	return Inbound{Platform: "discord", Channel: m.ChannelID, Thread: m.ID, Sender: m.Author.Username, Text: Sanitize(m.Content)}, true
}

func (d *Discord) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil
	}
	if d.removeH != nil {
		d.removeH()
		d.removeH = nil
	}
	d.open = false
	return d.session.Close()
}

// Send posts text to channel; thread is the message id to reply to.
func (d *Discord) Send(_ context.Context, channel, text, thread string) error {
	var err error
	if thread != "" {
		_, err = d.session.ChannelMessageSendReply(channel, text, &discordgo.MessageReference{MessageID: thread, ChannelID: channel})
	} else {
		_, err = d.session.ChannelMessageSend(channel, text)
	}
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}
