package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/pkg/models"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "home"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st)
}

func TestNormalizePriority(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
		wantErr  bool
	}{
		{"", "medium", false},
		{"  HIGH ", "high", false},
		{"urgent", "urgent", false},
		{"very urgent", "", true},
		{"p\x00", "", true},
		{"abcdefghijklmnopqrstuvwxyzabcdefg", "", true},
	}
	for _, c := range cases {
		got, err := NormalizePriority(c.in)
		if c.wantErr {
			if !errors.Is(err, errs.ErrInvalidPriority) {
				t.Errorf("NormalizePriority(%q): want ErrInvalidPriority, got %v", c.in, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("NormalizePriority(%q) = %q, %v; want %q", c.in, got, err, c.want)
		}
	}
}

func TestCreateValidatesAndStamps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newLedger(t)

	if err := l.Create(ctx, &store.Task{TaskID: "t1", AssignedAgent: "alice"}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("missing title: want ErrInvalidInput, got %v", err)
	}
	task := &store.Task{TaskID: "t1", Title: "API", AssignedAgent: "alice", Status: models.TaskCompleted, Dependencies: []string{"t0"}}
	if err := l.Create(ctx, task); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Status != models.TaskAssigned || task.Priority != "medium" || task.CreatedAt.IsZero() {
		t.Fatalf("not stamped: %+v", task)
	}
	if err := l.Create(ctx, &store.Task{TaskID: "t1", Title: "again", AssignedAgent: "bob"}); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("duplicate: want ErrConflict, got %v", err)
	}
	// Dependency t0 does not exist and is not checked.
	got, err := l.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Dependencies) != 1 || got.Dependencies[0] != "t0" {
		t.Fatalf("dependencies: %v", got.Dependencies)
	}
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newLedger(t)

	if err := l.Create(ctx, &store.Task{TaskID: "t1", Title: "API", AssignedAgent: "alice"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := l.Promote(ctx, "t1")
	if err != nil || got.Status != models.TaskWorking {
		t.Fatalf("Promote: %+v, %v", got, err)
	}
	got, err = l.SetStatus(ctx, "t1", models.TaskCompleted, "done")
	if err != nil {
		t.Fatalf("SetStatus completed: %v", err)
	}
	if got.Result != "done" || got.CompletedAt == nil {
		t.Fatalf("completion not recorded: %+v", got)
	}
	firstUpdate := got.UpdatedAt

	// Completed is terminal.
	if _, err := l.SetStatus(ctx, "t1", models.TaskFailed, "late"); !errors.Is(err, errs.ErrTaskClosed) {
		t.Fatalf("completed->failed: want ErrTaskClosed, got %v", err)
	}
	again, err := l.SetStatus(ctx, "t1", models.TaskCompleted, "other result")
	if err != nil {
		t.Fatalf("re-complete: %v", err)
	}
	if again.Result != "done" || again.UpdatedAt.Before(firstUpdate) {
		t.Fatalf("re-complete should only touch updated_at: %+v", again)
	}
	// Promote does not reopen.
	if p, err := l.Promote(ctx, "t1"); err != nil || p.Status != models.TaskCompleted {
		t.Fatalf("Promote completed: %+v, %v", p, err)
	}
}

func TestFailedIsSettableExternally(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newLedger(t)

	if err := l.Create(ctx, &store.Task{TaskID: "t2", Title: "Deploy", AssignedAgent: "dana"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := l.SetStatus(ctx, "t2", models.TaskFailed, "cluster down")
	if err != nil || got.Status != models.TaskFailed {
		t.Fatalf("SetStatus failed: %+v, %v", got, err)
	}
	if _, err := l.SetStatus(ctx, "t2", models.TaskStatus("paused"), ""); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("unknown status: want ErrInvalidInput, got %v", err)
	}
	if _, err := l.SetStatus(ctx, "missing", models.TaskCompleted, ""); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing task: want ErrNotFound, got %v", err)
	}
}
