package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/events"
	"github.com/ankittk/devcrew/internal/otel"
	"github.com/ankittk/devcrew/internal/tasks"
	"github.com/ankittk/devcrew/pkg/models"
)

// RequestCollaboration records a one-way request for help from req.TargetAgent.
// The request type and priority are validated before anything is written.
// When a messenger is configured a notice goes to the default channel; a
// failed notice is logged and does not fail the request.
func (a *Agent) RequestCollaboration(ctx context.Context, req models.CollaborationRequest) error {
	rt, ok := models.ParseRequestType(string(req.RequestType))
	if !ok {
		return fmt.Errorf("%w: %q", errs.ErrInvalidRequestType, req.RequestType)
	}
	priority, err := tasks.NormalizePriority(req.Priority)
	if err != nil {
		return err
	}
	target := strings.TrimSpace(req.TargetAgent)
	if target == "" {
		return fmt.Errorf("%w: target agent required", errs.ErrInvalidInput)
	}

	a.mu.Lock()
	if err := a.recordActivity(ctx, "collaboration", "request_sent", map[string]any{
		"target_agent": target,
		"request_type": string(rt),
		"description":  req.Description,
		"priority":     priority,
	}); err != nil {
		a.mu.Unlock()
		return err
	}
	a.appendContextLocked(ctx, KindCollaborationRequested, map[string]any{
		"target_agent": target,
		"request_type": string(rt),
		"description":  req.Description,
	})
	a.mu.Unlock()

	if m, ch := a.opts.Messenger, a.opts.DefaultChannel; m != nil && ch != "" {
		notice := fmt.Sprintf("🤝 %s is asking %s for help (%s, %s priority): %s", a.id.Name, target, rt, priority, req.Description)
		if err := m.Send(ctx, ch, notice, ""); err != nil {
			a.log.Warn("collaboration notice failed", "target", target, "err", err)
		}
	}
	a.log.Info("collaboration requested", "target", target, "type", rt)
	otel.RecordCollaboration(ctx, a.id.Name, string(rt))
	a.publish(ctx, events.CollaborationRequest, "", map[string]any{
		"target_agent": target,
		"request_type": string(rt),
		"priority":     priority,
	})
	return nil
}
