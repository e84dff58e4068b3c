// Package events carries lifecycle, task and collaboration notifications to
// observers: the HTTP SSE stream and, optionally, a Redis stream.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	AgentStarted         = "agent.started"
	AgentStopped         = "agent.stopped"
	AgentRestarted       = "agent.restarted"
	TaskAssigned         = "task.assigned"
	TaskCompleted        = "task.completed"
	TaskFailed           = "task.failed"
	CollaborationRequest = "collaboration.requested"
	MessageProcessed     = "message.processed"
)

// Event is one notification.
type Event struct {
	Type   string         `json:"type"`
	Agent  string         `json:"agent,omitempty"`
	TaskID string         `json:"task_id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	Time   time.Time      `json:"time"`
}

// Publisher delivers events. Publish is best-effort and must not block for long.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stamp fills Time when unset.
func Stamp(ev Event) Event {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	return ev
}
