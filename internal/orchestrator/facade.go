package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/otel"
	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/pkg/models"
	"github.com/google/uuid"
)

// CreateTask records t and, when its assignee is running, hands it to that
// agent, which adopts it and promotes it to working. Otherwise the task stays
// assigned until someone completes or fails it. An empty id gets a uuid.
func (r *Runner) CreateTask(ctx context.Context, t *store.Task) error {
	if strings.TrimSpace(t.TaskID) == "" {
		t.TaskID = uuid.NewString()
	}
	if _, ok := r.cfg.Agent(t.AssignedAgent); !ok {
		return fmt.Errorf("%w: agent %q is not configured", errs.ErrNotFound, t.AssignedAgent)
	}
	if a, ok := r.Running(t.AssignedAgent); ok {
		return a.AssignTask(ctx, t)
	}
	if err := r.ledger.Create(ctx, t); err != nil {
		return err
	}
	r.log.Info("task recorded for stopped agent", "task", t.TaskID, "agent", t.AssignedAgent)
	otel.RecordTaskOp(ctx, "create", t.AssignedAgent, string(t.Status))
	return nil
}

// UpdateTaskStatus applies an explicit status change. Completed and failed go
// through the running assignee so its state follows; otherwise the ledger is
// updated directly.
func (r *Runner) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus, result string) (*store.Task, error) {
	st, err := models.ParseTaskStatus(string(status))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	t, err := r.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a, ok := r.Running(t.AssignedAgent); ok {
		switch st {
		case models.TaskCompleted:
			err = a.CompleteTask(ctx, id, result)
		case models.TaskFailed:
			err = a.FailTask(ctx, id, result)
		default:
			_, err = r.ledger.SetStatus(ctx, id, st, result)
		}
		if err != nil {
			return nil, err
		}
		return r.ledger.Get(ctx, id)
	}
	t, err = r.ledger.SetStatus(ctx, id, st, result)
	if err != nil {
		return nil, err
	}
	otel.RecordTaskOp(ctx, "update", t.AssignedAgent, string(t.Status))
	return t, nil
}

// RequestCollaboration sends req on behalf of req.Requester, which must be
// running. With no requester the first running agent by name is used. The
// requester name actually used is returned.
func (r *Runner) RequestCollaboration(ctx context.Context, req models.CollaborationRequest) (string, error) {
	if _, ok := models.ParseRequestType(string(req.RequestType)); !ok {
		return "", fmt.Errorf("%w: %q", errs.ErrInvalidRequestType, req.RequestType)
	}
	name := req.Requester
	if name == "" {
		running := r.RunningNames()
		if len(running) == 0 {
			return "", fmt.Errorf("%w: no agents are running", errs.ErrInvalidInput)
		}
		name = running[0]
	}
	a, ok := r.Running(name)
	if !ok {
		return "", fmt.Errorf("%w: agent %q is not running", errs.ErrNotFound, name)
	}
	req.Requester = name
	req.RequesterID = a.Identity().ID
	return name, a.RequestCollaboration(ctx, req)
}

// ProcessMessage delivers an operator message to a running agent and returns its reply.
func (r *Runner) ProcessMessage(ctx context.Context, name string, msg models.Message) (string, error) {
	a, ok := r.Running(name)
	if !ok {
		if _, configured := r.cfg.Agent(name); !configured {
			return "", fmt.Errorf("%w: agent %q is not configured", errs.ErrNotFound, name)
		}
		return "", fmt.Errorf("%w: agent %q is not running", errs.ErrNotFound, name)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return "", fmt.Errorf("%w: empty message", errs.ErrInvalidInput)
	}
	if msg.Type != "" {
		if _, ok := models.ParseRequestType(string(msg.Type)); !ok {
			return "", fmt.Errorf("%w: %q", errs.ErrInvalidRequestType, msg.Type)
		}
	}
	return a.ProcessMessage(ctx, msg.Text, msg.Channel, firstNonEmpty(msg.Sender, "api"), msg.Type), nil
}

// Tasks lists the tasks assigned to name, newest first.
func (r *Runner) Tasks(ctx context.Context, name string, limit int) ([]store.Task, error) {
	return r.ledger.List(ctx, store.TaskFilter{AssignedAgent: name, Limit: limit})
}

// ListTasks lists tasks matching f.
func (r *Runner) ListTasks(ctx context.Context, f store.TaskFilter) ([]store.Task, error) {
	return r.ledger.List(ctx, f)
}

// Task returns one task.
func (r *Runner) Task(ctx context.Context, id string) (*store.Task, error) {
	return r.ledger.Get(ctx, id)
}

// Activities lists audit records matching f, newest first.
func (r *Runner) Activities(ctx context.Context, f store.ActivityFilter) ([]store.Activity, error) {
	out, err := r.st.ListActivities(ctx, f)
	if err != nil {
		return nil, errs.Persistence(err)
	}
	return out, nil
}

// Stats returns store-wide record counts.
func (r *Runner) Stats(ctx context.Context) (models.Stats, error) {
	s, err := r.st.Stats(ctx)
	if err != nil {
		return models.Stats{}, errs.Persistence(err)
	}
	return s, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
