// Package agent is one running, role-bound worker: it owns its runtime state
// and context window, answers messages through a completion backend, and
// adopts, completes and fails tasks through the task ledger.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ankittk/devcrew/internal/codehost"
	"github.com/ankittk/devcrew/internal/completion"
	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/events"
	"github.com/ankittk/devcrew/internal/memory"
	"github.com/ankittk/devcrew/internal/messaging"
	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/internal/tasks"
	"github.com/ankittk/devcrew/pkg/models"
	"github.com/google/uuid"
)

// Options are the collaborators and settings of an Agent. Store is required;
// every integration may be nil.
type Options struct {
	Store     store.Store
	Ledger    *tasks.Ledger // defaults to tasks.New(Store)
	Completer completion.Completer
	Messenger messaging.Messenger
	CodeHost  codehost.Client
	Publisher events.Publisher
	Journal   *memory.Journal

	DefaultChannel string
	DefaultRepo    string
	BaseBranch     string

	// Completion overrides; zero or nil keeps the identity model and backend defaults.
	Model        string
	MaxTokens    int
	Temperature  *float64
	Instructions string

	Logger *slog.Logger
	Now    func() time.Time
}

// Agent is safe for concurrent use. State mutations are serialized by mu;
// completion calls run without it.
type Agent struct {
	id      Identity
	opts    Options
	ledger  *tasks.Ledger
	log     *slog.Logger
	now     func() time.Time
	started time.Time

	mu     sync.Mutex
	state  store.AgentState
	window *ContextWindow
}

// New loads the agent's persisted state, or creates it on first start.
// A persisted state that breaks the status/current-task pairing is reset to
// the error status and the problem is kept in Memory["last_error"]. A current
// task the ledger has since closed is dropped and the agent starts idle.
func New(ctx context.Context, id Identity, opts Options) (*Agent, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: agent %s has no store", errs.ErrConfiguration, id.Name)
	}
	if id.Name == "" {
		return nil, fmt.Errorf("%w: agent name required", errs.ErrConfiguration)
	}
	if id.ID == "" {
		id.ID = IDFor(id.Name)
	}
	if opts.Ledger == nil {
		opts.Ledger = tasks.New(opts.Store)
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	a := &Agent{
		id:     id,
		opts:   opts,
		ledger: opts.Ledger,
		log:    opts.Logger.With("agent", id.Name),
		now:    opts.Now,
	}
	a.started = a.now()

	st, err := opts.Store.GetAgentState(ctx, id.Name)
	fresh := errors.Is(err, errs.ErrNotFound)
	switch {
	case fresh:
		st = &store.AgentState{
			AgentName:    id.Name,
			Status:       models.AgentIdle,
			LastActivity: a.started,
			Memory:       map[string]any{},
		}
	case err != nil:
		return nil, errs.Persistence(fmt.Errorf("load state for %s: %w", id.Name, err))
	}
	st.AgentID = id.ID
	if st.Memory == nil {
		st.Memory = map[string]any{}
	}
	problem := normalize(st)
	if problem != "" {
		a.log.Warn("persisted state normalized", "problem", problem)
	} else if problem = a.reconcile(ctx, st); problem != "" {
		a.log.Info("persisted current task reconciled", "problem", problem)
	}
	a.window = NewContextWindow(models.ContextWindowCapacity, st.Context)
	st.Context = a.window.Entries()
	a.state = *st
	if fresh || problem != "" {
		a.state.UpdatedAt = a.now()
		if err := opts.Store.PutAgentState(ctx, store.CloneState(&a.state)); err != nil {
			return nil, errs.Persistence(fmt.Errorf("save state for %s: %w", id.Name, err))
		}
	}
	return a, nil
}

// normalize repairs a state that breaks "CurrentTask set iff working" and
// returns a description of what was wrong, or "".
func normalize(st *store.AgentState) string {
	var problem string
	switch {
	case !st.Status.Valid():
		problem = fmt.Sprintf("unknown status %q", st.Status)
	case st.Status == models.AgentWorking && (st.CurrentTask == nil || *st.CurrentTask == ""):
		problem = "working without a current task"
	case st.Status != models.AgentWorking && st.CurrentTask != nil:
		problem = fmt.Sprintf("current task %s while %s", *st.CurrentTask, st.Status)
	}
	if problem == "" {
		return ""
	}
	st.Status = models.AgentError
	st.CurrentTask = nil
	st.Memory["last_error"] = problem
	return problem
}

// reconcile checks a persisted current task against the ledger, which may have
// closed or lost it while the agent was stopped. It returns what changed, or "".
func (a *Agent) reconcile(ctx context.Context, st *store.AgentState) string {
	if st.CurrentTask == nil {
		return ""
	}
	id := *st.CurrentTask
	t, err := a.ledger.Get(ctx, id)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		problem := fmt.Sprintf("current task %s no longer exists", id)
		st.Status = models.AgentError
		st.CurrentTask = nil
		st.Memory["last_error"] = problem
		return problem
	case err != nil:
		a.log.Warn("check current task failed", "task", id, "err", err)
		return ""
	case t.Status == models.TaskCompleted || t.Status == models.TaskFailed:
		st.Status = models.AgentIdle
		st.CurrentTask = nil
		return fmt.Sprintf("current task %s was %s while stopped", id, t.Status)
	}
	return ""
}

// Identity returns the agent's identity.
func (a *Agent) Identity() Identity { return a.id }

// Name returns the agent name.
func (a *Agent) Name() string { return a.id.Name }

// Messenger returns the agent's messenger, or nil.
func (a *Agent) Messenger() messaging.Messenger { return a.opts.Messenger }

// DefaultChannel is where presence and collaboration notices go.
func (a *Agent) DefaultChannel() string { return a.opts.DefaultChannel }

// State returns a copy of the runtime state.
func (a *Agent) State() store.AgentState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := store.CloneState(&a.state)
	st.Context = a.window.Entries()
	return *st
}

// ContextSummary renders the newest n context entries.
func (a *Agent) ContextSummary(n int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window.Summary(n)
}

func (a *Agent) entry(kind string, payload any) models.ContextEntry {
	return models.ContextEntry{Timestamp: a.now(), Kind: kind, Payload: payload}
}

// appendContextLocked adds an entry and persists. A failed save is logged;
// the in-memory window keeps the entry. Caller holds a.mu.
func (a *Agent) appendContextLocked(ctx context.Context, kind string, payload any) {
	a.window.Append(a.entry(kind, payload))
	a.state.LastActivity = a.now()
	if err := a.saveLocked(ctx); err != nil {
		a.log.Warn("save context failed", "kind", kind, "err", err)
	}
}

// updateLocked applies fn to copies of the state and window, persists the
// result and only then swaps it in. On error the prior state is intact.
// Caller holds a.mu.
func (a *Agent) updateLocked(ctx context.Context, fn func(st *store.AgentState, w *ContextWindow)) error {
	st := store.CloneState(&a.state)
	w := NewContextWindow(a.window.capacity, a.window.Entries())
	fn(st, w)
	now := a.now()
	st.Context = w.Entries()
	st.LastActivity = now
	st.UpdatedAt = now
	if err := a.opts.Store.PutAgentState(ctx, st); err != nil {
		return errs.Persistence(fmt.Errorf("save state for %s: %w", a.id.Name, err))
	}
	a.state = *st
	a.window = w
	return nil
}

func (a *Agent) saveLocked(ctx context.Context) error {
	st := store.CloneState(&a.state)
	st.Context = a.window.Entries()
	st.UpdatedAt = a.now()
	if err := a.opts.Store.PutAgentState(ctx, st); err != nil {
		return errs.Persistence(fmt.Errorf("save state for %s: %w", a.id.Name, err))
	}
	a.state.UpdatedAt = st.UpdatedAt
	return nil
}

// recordActivity appends an audit record. Failures are returned wrapped as persistence errors.
func (a *Agent) recordActivity(ctx context.Context, typ, action string, details map[string]any) error {
	err := a.opts.Store.AppendActivity(ctx, &store.Activity{
		ID:        uuid.NewString(),
		AgentID:   a.id.ID,
		AgentName: a.id.Name,
		Type:      typ,
		Action:    action,
		Details:   details,
		CreatedAt: a.now(),
	})
	return errs.Persistence(err)
}

func (a *Agent) publish(ctx context.Context, typ, taskID string, data map[string]any) {
	ev := events.Stamp(events.Event{Type: typ, Agent: a.id.Name, TaskID: taskID, Data: data, Time: a.now()})
	if err := a.opts.Publisher.Publish(ctx, ev); err != nil {
		a.log.Debug("publish event failed", "type", typ, "err", err)
	}
}

// Shutdown stops the messenger and saves the final state. Errors are logged only.
func (a *Agent) Shutdown(ctx context.Context) {
	if m := a.opts.Messenger; m != nil {
		if err := m.Stop(ctx); err != nil {
			a.log.Warn("messenger stop failed", "messenger", m.Name(), "err", err)
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.saveLocked(ctx); err != nil {
		a.log.Warn("final save failed", "err", err)
		return
	}
	a.log.Info("agent shutdown complete")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
