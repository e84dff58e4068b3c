// Package store defines the persistence interface and shared records for agent state, tasks and activities.
package store

import (
	"time"

	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/pkg/models"
)

// Store errors. Backends wrap these so callers can match with errors.Is.
var (
	ErrNotFound = errs.ErrNotFound
	ErrConflict = errs.ErrConflict
)

// AgentState is the durable runtime state of one agent.
type AgentState struct {
	AgentID      string
	AgentName    string
	Status       models.AgentStatus
	CurrentTask  *string // set iff Status is working
	LastActivity time.Time
	Memory       map[string]any
	Context      []models.ContextEntry
	UpdatedAt    time.Time
}

// Task is a unit of work tracked to completion.
type Task struct {
	TaskID             string
	Title              string
	Description        string
	AssignedAgent      string
	AssignedBy         string
	Priority           string
	EstimatedDuration  string
	Dependencies       []string // informational only
	AcceptanceCriteria []string
	Status             models.TaskStatus
	Result             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

// Activity is an audit record (message processed, collaboration sent, commit made, ...).
type Activity struct {
	ID        string
	AgentID   string
	AgentName string
	Type      string
	Action    string
	Details   map[string]any
	CreatedAt time.Time
}

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	AssignedAgent string
	Status        models.TaskStatus
	Limit         int
}

// ActivityFilter narrows ListActivities. Zero values match everything.
type ActivityFilter struct {
	AgentName string
	Type      string
	Action    string
	Limit     int
}

// EffectiveLimit returns f.Limit or the default task list limit.
func (f TaskFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return models.DefaultTaskListLimit
	}
	return f.Limit
}

// EffectiveLimit returns f.Limit or the default activity list limit.
func (f ActivityFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return models.DefaultActivityListLimit
	}
	return f.Limit
}

// Match reports whether t passes the filter. Used by backends that filter in memory.
func (f TaskFilter) Match(t *Task) bool {
	if f.AssignedAgent != "" && t.AssignedAgent != f.AssignedAgent {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

// Match reports whether a passes the filter.
func (f ActivityFilter) Match(a *Activity) bool {
	if f.AgentName != "" && a.AgentName != f.AgentName {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Action != "" && a.Action != f.Action {
		return false
	}
	return true
}
