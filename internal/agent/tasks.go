package agent

import (
	"context"
	"fmt"

	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/events"
	"github.com/ankittk/devcrew/internal/memory"
	"github.com/ankittk/devcrew/internal/otel"
	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/pkg/models"
)

// AssignTask records t in the ledger (status assigned), makes it the agent's
// current task and then promotes it to working. A failed promotion is logged
// and leaves the task assigned.
func (a *Agent) AssignTask(ctx context.Context, t *store.Task) error {
	if t.AssignedAgent == "" {
		t.AssignedAgent = a.id.Name
	}
	if t.AssignedAgent != a.id.Name {
		return fmt.Errorf("%w: task %s is assigned to %s, not %s", errs.ErrInvalidInput, t.TaskID, t.AssignedAgent, a.id.Name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ledger.Create(ctx, t); err != nil {
		return err
	}
	id := t.TaskID
	if prev := a.state.CurrentTask; prev != nil && *prev != id {
		a.log.Info("replacing current task", "previous", *prev, "task", id)
	}
	err := a.updateLocked(ctx, func(st *store.AgentState, w *ContextWindow) {
		st.Status = models.AgentWorking
		st.CurrentTask = &id
		w.Append(a.entry(KindTaskAssigned, map[string]any{
			"task_id":     id,
			"title":       t.Title,
			"description": t.Description,
			"priority":    t.Priority,
			"summary":     fmt.Sprintf("%s (%s, %s priority)", t.Title, id, t.Priority),
		}))
	})
	if err != nil {
		return err
	}
	if promoted, err := a.ledger.Promote(ctx, id); err != nil {
		a.log.Warn("promote task failed", "task", id, "err", err)
	} else {
		*t = *promoted
	}
	a.log.Info("task assigned", "task", id, "title", t.Title)
	otel.RecordTaskOp(ctx, "assign", a.id.Name, string(t.Status))
	a.publish(ctx, events.TaskAssigned, id, map[string]any{"title": t.Title, "priority": t.Priority})
	return nil
}

// CompleteTask marks task id completed. If it is the current task the agent
// returns to idle. Ownership is not checked: completing another agent's task
// updates the ledger and this agent's context but not its current task.
// Completing an already completed task only refreshes the ledger timestamp.
func (a *Agent) CompleteTask(ctx context.Context, id, result string) error {
	return a.finishTask(ctx, id, result, models.TaskCompleted)
}

// FailTask marks task id failed. Same shape as CompleteTask.
func (a *Agent) FailTask(ctx context.Context, id, reason string) error {
	return a.finishTask(ctx, id, reason, models.TaskFailed)
}

func (a *Agent) finishTask(ctx context.Context, id, result string, status models.TaskStatus) error {
	kind, evType, op := KindTaskCompleted, events.TaskCompleted, "complete"
	if status == models.TaskFailed {
		kind, evType, op = KindTaskFailed, events.TaskFailed, "fail"
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	prior, err := a.ledger.Get(ctx, id)
	if err != nil {
		return err
	}
	t, err := a.ledger.SetStatus(ctx, id, status, result)
	if err != nil {
		return err
	}
	if prior.Status == status {
		// Repeat of an earlier finish: no new entry, journal line or event.
		a.log.Debug("task already finished", "task", id, "status", status)
		if a.state.CurrentTask == nil || *a.state.CurrentTask != id {
			return nil
		}
		return a.updateLocked(ctx, func(st *store.AgentState, _ *ContextWindow) {
			st.CurrentTask = nil
			st.Status = models.AgentIdle
		})
	}
	err = a.updateLocked(ctx, func(st *store.AgentState, w *ContextWindow) {
		if st.CurrentTask != nil && *st.CurrentTask == id {
			st.CurrentTask = nil
			st.Status = models.AgentIdle
		}
		w.Append(a.entry(kind, map[string]any{
			"task_id": id,
			"result":  result,
			"summary": fmt.Sprintf("%s: %s", id, truncate(result, 200)),
		}))
	})
	if err != nil {
		return err
	}
	if j := a.opts.Journal; j != nil {
		if err := j.Append(ctx, memory.JournalEntry{
			TaskID:    id,
			TaskTitle: t.Title,
			Status:    string(status),
			Outcome:   result,
			CreatedAt: a.now(),
		}); err != nil {
			a.log.Warn("journal append failed", "task", id, "err", err)
		}
	}
	a.log.Info("task finished", "task", id, "status", status)
	otel.RecordTaskOp(ctx, op, a.id.Name, string(status))
	a.publish(ctx, evType, id, map[string]any{"result": truncate(result, logTruncate)})
	return nil
}
