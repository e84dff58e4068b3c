package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestJournal_AppendAndRead(t *testing.T) {
	home := t.TempDir()
	j := &Journal{AgentName: "alice", Home: home}
	ctx := context.Background()

	ts, _ := time.Parse(time.RFC3339, "2025-01-15T10:00:00Z")
	err := j.Append(ctx, JournalEntry{
		TaskID:    "t1",
		TaskTitle: "Add feature",
		Status:    "completed",
		Outcome:   "done",
		CreatedAt: ts,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	content, err := j.Read(ctx, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for _, want := range []string{"## 2025-01-15 10:00 - Add feature", "- **Task:** t1", "- **Status:** completed", "- **Outcome:** done"} {
		if !strings.Contains(content, want) {
			t.Fatalf("Read: missing %q in %q", want, content)
		}
	}

	sum, err := j.Summary(ctx, 500)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum == "" || sum == "(no journal entries yet)" {
		t.Fatalf("Summary: expected content, got %q", sum)
	}
}

func TestJournal_Append_createsDirectory(t *testing.T) {
	home := filepath.Join(t.TempDir(), "fresh")
	j := &Journal{AgentName: "bob", Home: home}
	if err := j.Append(context.Background(), JournalEntry{TaskID: "t1", Outcome: "ok", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := os.Stat(AgentDir(home, "bob")); os.IsNotExist(err) {
		t.Fatalf("Append should create agent dir")
	}
}

func TestJournal_Read_limitBytes(t *testing.T) {
	j := &Journal{AgentName: "alice", Home: t.TempDir()}
	ctx := context.Background()
	_ = j.Append(ctx, JournalEntry{TaskID: "t1", TaskTitle: "Long title here", Outcome: "done", CreatedAt: time.Now().UTC()})
	content, err := j.Read(ctx, 20)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(content) > 20 {
		t.Fatalf("Read limitBytes=20: got len %d", len(content))
	}
}

func TestJournal_Summary_emptyJournal(t *testing.T) {
	j := &Journal{AgentName: "nobody", Home: t.TempDir()}
	sum, err := j.Summary(context.Background(), 500)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum != "(no journal entries yet)" {
		t.Fatalf("Summary empty: got %q", sum)
	}
}

func TestEnsureAgentDir(t *testing.T) {
	home := t.TempDir()
	if err := EnsureAgentDir(home, "carol"); err != nil {
		t.Fatalf("EnsureAgentDir: %v", err)
	}
	if _, err := os.Stat(NotesDir(AgentDir(home, "carol"))); os.IsNotExist(err) {
		t.Fatal("EnsureAgentDir should create notes/")
	}
}
