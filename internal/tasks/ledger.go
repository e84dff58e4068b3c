// Package tasks owns task records and their status transitions.
//
// The ledger performs two transitions itself: assigned to working when an
// agent adopts a task, and any open status to completed. Failed is only set
// by external callers. Dependencies are stored and returned but never
// checked; a task may be assigned while its dependencies are still open.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/pkg/models"
)

// Ledger validates and persists task records through a store.Store.
type Ledger struct {
	st  store.Store
	now func() time.Time
}

// New returns a Ledger backed by st.
func New(st store.Store) *Ledger {
	return &Ledger{st: st, now: func() time.Time { return time.Now().UTC() }}
}

// NormalizePriority trims and lowercases p, defaulting to medium. Priority is
// an open set; only empty-after-trim, overlong or whitespace-bearing values are rejected.
func NormalizePriority(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return models.DefaultPriority, nil
	}
	if len(p) > models.MaxPriorityLen {
		return "", fmt.Errorf("%w: %q longer than %d", errs.ErrInvalidPriority, p, models.MaxPriorityLen)
	}
	for _, r := range p {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q", errs.ErrInvalidPriority, p)
		}
	}
	return p, nil
}

// Create validates t, stamps it assigned and inserts it. A duplicate id
// fails with errs.ErrConflict.
func (l *Ledger) Create(ctx context.Context, t *store.Task) error {
	if strings.TrimSpace(t.TaskID) == "" {
		return fmt.Errorf("%w: task id required", errs.ErrInvalidInput)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: task title required", errs.ErrInvalidInput)
	}
	if strings.TrimSpace(t.AssignedAgent) == "" {
		return fmt.Errorf("%w: assigned agent required", errs.ErrInvalidInput)
	}
	p, err := NormalizePriority(t.Priority)
	if err != nil {
		return err
	}
	now := l.now()
	t.Priority = p
	t.Status = models.TaskAssigned
	t.Result = ""
	t.CompletedAt = nil
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if err := l.st.CreateTask(ctx, t); err != nil {
		return errs.Persistence(fmt.Errorf("create task %s: %w", t.TaskID, err))
	}
	return nil
}

// Get returns the task or errs.ErrNotFound.
func (l *Ledger) Get(ctx context.Context, id string) (*store.Task, error) {
	t, err := l.st.GetTask(ctx, id)
	if err != nil {
		return nil, errs.Persistence(err)
	}
	return t, nil
}

// List returns tasks matching f, newest first.
func (l *Ledger) List(ctx context.Context, f store.TaskFilter) ([]store.Task, error) {
	out, err := l.st.ListTasks(ctx, f)
	if err != nil {
		return nil, errs.Persistence(err)
	}
	return out, nil
}

// Promote moves an assigned task to working. Tasks in any other status are left alone.
func (l *Ledger) Promote(ctx context.Context, id string) (*store.Task, error) {
	t, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TaskAssigned {
		return t, nil
	}
	t.Status = models.TaskWorking
	t.UpdatedAt = l.now()
	if err := l.st.UpdateTask(ctx, t); err != nil {
		return nil, errs.Persistence(err)
	}
	return t, nil
}

// SetStatus applies an explicit status change. A completed task only accepts
// completed again, which refreshes UpdatedAt and nothing else.
func (l *Ledger) SetStatus(ctx context.Context, id string, status models.TaskStatus, result string) (*store.Task, error) {
	if _, err := models.ParseTaskStatus(string(status)); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	t, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := l.now()
	if t.Status == models.TaskCompleted {
		if status != models.TaskCompleted {
			return nil, fmt.Errorf("task %s to %s: %w", id, status, errs.ErrTaskClosed)
		}
		t.UpdatedAt = now
	} else {
		t.Status = status
		t.UpdatedAt = now
		if status == models.TaskCompleted || status == models.TaskFailed {
			t.Result = result
			t.CompletedAt = &now
		} else {
			t.CompletedAt = nil
		}
	}
	if err := l.st.UpdateTask(ctx, t); err != nil {
		return nil, errs.Persistence(err)
	}
	return t, nil
}
