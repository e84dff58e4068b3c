package store

import (
	"context"

	"github.com/ankittk/devcrew/pkg/models"
)

// Store is the persistence interface for agent state, tasks and activity records.
// Writes are last-write-wins per key; there is no transaction spanning calls.
// Implementations: the SQLite store in this package, postgres.Store, redis.Store and mysql.Store.
type Store interface {
	// Agent runtime state, keyed by agent name.
	GetAgentState(ctx context.Context, agentName string) (*AgentState, error)
	PutAgentState(ctx context.Context, st *AgentState) error

	// Tasks
	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, taskID string) (*Task, error)
	UpdateTask(ctx context.Context, t *Task) error
	ListTasks(ctx context.Context, f TaskFilter) ([]Task, error)

	// Activities (including collaboration requests and messages)
	AppendActivity(ctx context.Context, a *Activity) error
	ListActivities(ctx context.Context, f ActivityFilter) ([]Activity, error)

	// Lifecycle
	Stats(ctx context.Context) (models.Stats, error)
	Close() error
}
