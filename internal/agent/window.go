package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ankittk/devcrew/pkg/models"
)

// Context entry kinds.
const (
	KindIncomingMessage        = "incoming_message"
	KindOutgoingMessage        = "outgoing_message"
	KindTaskAssigned           = "task_assigned"
	KindTaskCompleted          = "task_completed"
	KindTaskFailed             = "task_failed"
	KindCollaborationRequested = "collaboration_requested"
	KindMessageSent            = "message_sent"
	KindGitHubCommit           = "github_commit"
	KindGitHubPRCreated        = "github_pr_created"
	KindGitHubPRReviewed       = "github_pr_reviewed"
	KindGitHubPRMerged         = "github_pr_merged"
	KindGitHubIssueCreated     = "github_issue_created"
)

const emptySummary = "No recent context available."

// ContextWindow is a bounded FIFO of context entries. When full, appending
// evicts the oldest entry. Not safe for concurrent use; the owning Agent locks.
type ContextWindow struct {
	entries  []models.ContextEntry
	head     int
	capacity int
}

// NewContextWindow returns a window holding at most capacity entries, seeded
// with the newest entries of initial.
func NewContextWindow(capacity int, initial []models.ContextEntry) *ContextWindow {
	if capacity <= 0 {
		capacity = models.ContextWindowCapacity
	}
	if len(initial) > capacity {
		initial = initial[len(initial)-capacity:]
	}
	w := &ContextWindow{capacity: capacity, entries: make([]models.ContextEntry, 0, 2*capacity)}
	w.entries = append(w.entries, initial...)
	return w
}

// Append adds e, evicting the oldest entry past capacity.
func (w *ContextWindow) Append(e models.ContextEntry) {
	w.entries = append(w.entries, e)
	if len(w.entries)-w.head > w.capacity {
		w.head++
	}
	// compact once the dead prefix reaches capacity
	if w.head >= w.capacity {
		n := copy(w.entries, w.entries[w.head:])
		clear(w.entries[n:])
		w.entries = w.entries[:n]
		w.head = 0
	}
}

// Len returns the number of live entries.
func (w *ContextWindow) Len() int { return len(w.entries) - w.head }

// Entries returns a copy of the live entries, oldest first.
func (w *ContextWindow) Entries() []models.ContextEntry {
	return append([]models.ContextEntry(nil), w.entries[w.head:]...)
}

// Summary renders the newest n entries, oldest first, one per line.
func (w *ContextWindow) Summary(n int) string {
	live := w.entries[w.head:]
	if len(live) == 0 {
		return emptySummary
	}
	if n > 0 && len(live) > n {
		live = live[len(live)-n:]
	}
	lines := make([]string, 0, len(live))
	for _, e := range live {
		lines = append(lines, summarizeEntry(e))
	}
	return strings.Join(lines, "\n")
}

func summarizeEntry(e models.ContextEntry) string {
	ts := e.Timestamp.UTC().Format(time.RFC3339)
	m, ok := e.Payload.(map[string]any)
	if !ok {
		return fmt.Sprintf("[%s] %v", ts, e.Payload)
	}
	if s, ok := m["summary"].(string); ok && s != "" {
		return fmt.Sprintf("[%s] %s: %s", ts, e.Kind, s)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("[%s] %s: %v", ts, e.Kind, m)
	}
	return fmt.Sprintf("[%s] %s: %s", ts, e.Kind, b)
}
