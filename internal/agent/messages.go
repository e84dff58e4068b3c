package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ankittk/devcrew/internal/completion"
	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/events"
	"github.com/ankittk/devcrew/internal/messaging"
	"github.com/ankittk/devcrew/internal/otel"
	"github.com/ankittk/devcrew/pkg/models"
)

// FallbackReply is returned when the completion backend fails or is absent.
const FallbackReply = "I'm having trouble processing your request right now. Please try again later."

const logTruncate = 100

// ProcessMessage answers text and records the exchange. It never fails: when
// completion is unavailable the reply is FallbackReply. An empty typ is
// classified from the text.
func (a *Agent) ProcessMessage(ctx context.Context, text, channel, sender string, typ models.RequestType) string {
	if typ == "" {
		typ = messaging.Classify(text)
	}

	a.mu.Lock()
	a.appendContextLocked(ctx, KindIncomingMessage, map[string]any{
		"channel":      channel,
		"sender":       sender,
		"message":      text,
		"message_type": string(typ),
		"summary":      fmt.Sprintf("%s: %s", firstNonEmpty(sender, "someone"), truncate(text, 200)),
	})
	a.mu.Unlock()
	prompt := a.userPrompt(a.ContextSummary(models.ContextSummaryEntries), typ, text)

	response, outcome := a.complete(ctx, prompt)

	a.mu.Lock()
	a.appendContextLocked(ctx, KindOutgoingMessage, map[string]any{
		"channel":      channel,
		"response":     response,
		"message_type": string(typ),
		"summary":      truncate(response, 200),
	})
	a.mu.Unlock()

	source := "agent"
	if a.opts.Messenger != nil {
		source = a.opts.Messenger.Name()
	}
	if err := a.recordActivity(ctx, source, "message_processed", map[string]any{
		"channel":      channel,
		"sender":       sender,
		"message":      truncate(text, logTruncate),
		"response":     truncate(response, logTruncate),
		"message_type": string(typ),
	}); err != nil {
		a.log.Warn("record message activity failed", "err", err)
	}
	otel.RecordMessage(ctx, a.id.Name, outcome)
	a.publish(ctx, events.MessageProcessed, "", map[string]any{"channel": channel, "message_type": string(typ), "outcome": outcome})
	return response
}

func (a *Agent) complete(ctx context.Context, prompt string) (string, string) {
	c := a.opts.Completer
	if c == nil {
		a.log.Warn("no completion backend; sending fallback reply")
		return FallbackReply, "fallback"
	}
	model := firstNonEmpty(a.opts.Model, a.id.Model)
	start := time.Now()
	out, err := c.Complete(ctx, completion.Request{
		Model:       model,
		System:      a.systemPrompt(),
		Prompt:      prompt,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	})
	otel.RecordCompletion(ctx, a.id.Name, c.Name(), time.Since(start), err)
	if err != nil || out == "" {
		a.log.Warn("completion failed; sending fallback reply", "backend", c.Name(), "err", err)
		return FallbackReply, "fallback"
	}
	return out, "ok"
}

// HandleInbound is the messaging.Handler for the agent's messenger: it logs
// the receipt, classifies the text and answers it.
func (a *Agent) HandleInbound(ctx context.Context, msg messaging.Inbound) string {
	if msg.Text == "" {
		return ""
	}
	if err := a.recordActivity(ctx, msg.Platform, "message_received", map[string]any{
		"channel": msg.Channel,
		"sender":  msg.Sender,
		"message": truncate(msg.Text, logTruncate),
	}); err != nil {
		a.log.Warn("record inbound activity failed", "err", err)
	}
	return a.ProcessMessage(ctx, msg.Text, msg.Channel, msg.Sender, messaging.Classify(msg.Text))
}

// SendMessage posts text through the messenger. An empty channel uses the default channel.
func (a *Agent) SendMessage(ctx context.Context, channel, text, thread string) error {
	m := a.opts.Messenger
	if m == nil {
		return fmt.Errorf("%w: %s has no messenger", errs.ErrIntegrationUnavailable, a.id.Name)
	}
	channel = firstNonEmpty(channel, a.opts.DefaultChannel)
	if channel == "" {
		return fmt.Errorf("%w: no channel", errs.ErrInvalidInput)
	}
	if err := m.Send(ctx, channel, text, thread); err != nil {
		return err
	}
	a.mu.Lock()
	a.appendContextLocked(ctx, KindMessageSent, map[string]any{
		"channel": channel,
		"thread":  thread,
		"summary": fmt.Sprintf("to %s: %s", channel, truncate(text, 200)),
	})
	a.mu.Unlock()
	if err := a.recordActivity(ctx, m.Name(), "message_sent", map[string]any{
		"channel": channel,
		"message": truncate(text, logTruncate),
	}); err != nil {
		a.log.Warn("record send activity failed", "err", err)
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
