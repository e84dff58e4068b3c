package memory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// JournalEntry represents one entry appended to an agent's journal.
type JournalEntry struct {
	TaskID    string
	TaskTitle string
	Status    string
	Outcome   string
	CreatedAt time.Time
}

// Journal manages an agent's journal.md file: append entries and read/summarize.
type Journal struct {
	AgentName string
	Home      string

	mu sync.Mutex
}

// Append adds an entry to the agent's journal. Creates the agent directory and
// journal file if they do not exist. The entry is appended in markdown form.
func (j *Journal) Append(_ context.Context, entry JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	agentDir := AgentDir(j.Home, j.AgentName)
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		return fmt.Errorf("create agent dir: %w", err)
	}
	f, err := os.OpenFile(JournalPath(agentDir), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(formatJournalBlock(entry)); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

func formatJournalBlock(e JournalEntry) string {
	var b strings.Builder
	b.WriteString("\n---\n\n## ")
	b.WriteString(e.CreatedAt.UTC().Format("2006-01-02 15:04"))
	if e.TaskTitle != "" {
		b.WriteString(" - ")
		b.WriteString(e.TaskTitle)
	}
	b.WriteString("\n\n")
	for _, f := range []struct{ label, val string }{
		{"Task", e.TaskID},
		{"Status", e.Status},
		{"Outcome", e.Outcome},
	} {
		if f.val == "" {
			continue
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", f.label, f.val)
	}
	b.WriteString("\n")
	return b.String()
}

// Read returns the tail of the journal, at most limitBytes long. A limit of 0
// means the whole file.
func (j *Journal) Read(_ context.Context, limitBytes int) (string, error) {
	data, err := os.ReadFile(JournalPath(AgentDir(j.Home, j.AgentName)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	s := string(data)
	if limitBytes <= 0 || len(s) <= limitBytes {
		return s, nil
	}
	return s[len(s)-limitBytes:], nil
}

// Summary returns the journal tail for prompt context, or a placeholder.
func (j *Journal) Summary(ctx context.Context, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 4000
	}
	s, err := j.Read(ctx, maxLen)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "(no journal entries yet)", nil
	}
	return s, nil
}

// EnsureAgentDir creates the agent directory and notes subdirectory if they do not exist.
func EnsureAgentDir(home, agentName string) error {
	agentDir := AgentDir(home, agentName)
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(NotesDir(agentDir), 0o755)
}
