// Package models provides shared types for the devcrew HTTP API and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and other consumers.
package models

import "time"

// Task is a unit of work tracked to completion.
type Task struct {
	TaskID             string     `json:"task_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	AssignedAgent      string     `json:"assigned_agent"`
	AssignedBy         string     `json:"assigned_by,omitempty"`
	Priority           string     `json:"priority,omitempty"`
	EstimatedDuration  string     `json:"estimated_duration,omitempty"`
	Dependencies       []string   `json:"dependencies,omitempty"`
	AcceptanceCriteria []string   `json:"acceptance_criteria,omitempty"`
	Status             TaskStatus `json:"status,omitempty"`
	Result             string     `json:"result,omitempty"`
	CreatedAt          time.Time  `json:"created_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// TaskUpdate is the PATCH /tasks/{id} body.
type TaskUpdate struct {
	Status TaskStatus `json:"status"`
	Result string     `json:"result,omitempty"`
}

// CollaborationRequest is a one-way request for help from one agent to another.
type CollaborationRequest struct {
	RequesterID string      `json:"requester_id,omitempty"`
	Requester   string      `json:"requester,omitempty"`
	TargetAgent string      `json:"target_agent"`
	RequestType RequestType `json:"request_type"`
	Description string      `json:"description"`
	Priority    string      `json:"priority,omitempty"`
	Timestamp   time.Time   `json:"timestamp,omitempty"`
}

// Message is an operator message delivered to an agent through the API.
type Message struct {
	Text    string      `json:"text"`
	Channel string      `json:"channel,omitempty"`
	Sender  string      `json:"sender,omitempty"`
	Type    RequestType `json:"type,omitempty"`
}

// MessageReply is the agent's answer to a Message.
type MessageReply struct {
	Agent    string `json:"agent"`
	Response string `json:"response"`
}

// ContextEntry is one item in an agent's context window.
type ContextEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Payload   any       `json:"payload"`
}

// Agent is a configured agent and whether it is currently running.
type Agent struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Role    Role        `json:"role"`
	Model   string      `json:"model,omitempty"`
	Enabled bool        `json:"enabled"`
	Running bool        `json:"running"`
	Status  AgentStatus `json:"status"`
}

// AgentStatusReport is the orchestrator's view of one agent.
type AgentStatusReport struct {
	Name              string      `json:"name"`
	Status            AgentStatus `json:"status"`
	CurrentTask       *string     `json:"current_task,omitempty"`
	LastActivity      *time.Time  `json:"last_activity,omitempty"`
	ContextWindowSize int         `json:"context_window_size,omitempty"`
	Health            *Health     `json:"health,omitempty"`
	Error             string      `json:"error,omitempty"`
}

// Health is a point-in-time health snapshot of a live agent.
type Health struct {
	Status               string          `json:"status"`
	AgentName            string          `json:"agent_name"`
	RuntimeStatus        AgentStatus     `json:"runtime_status"`
	Timestamp            time.Time       `json:"timestamp"`
	UptimeSeconds        float64         `json:"uptime"`
	SinceActivitySeconds float64         `json:"since_last_activity"`
	ActiveTasks          int             `json:"active_tasks"`
	LastActivity         time.Time       `json:"last_activity"`
	ContextWindowSize    int             `json:"context_window_size"`
	MemoryUsage          MemoryUsage     `json:"memory_usage"`
	Integrations         map[string]bool `json:"integrations"`
}

// MemoryUsage reports process memory figures.
type MemoryUsage struct {
	HeapAlloc uint64 `json:"heap_alloc"`
	Sys       uint64 `json:"sys"`
}

// Activity is an audit record written by agents and integrations.
type Activity struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	AgentName string         `json:"agent_name"`
	Type      string         `json:"type"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Stats is the /database/stats response.
type Stats struct {
	AgentStates   int            `json:"agent_states"`
	Tasks         int            `json:"tasks"`
	TasksByStatus map[string]int `json:"tasks_by_status"`
	Activities    int            `json:"activities"`
}

// ServiceInfo is the GET / response.
type ServiceInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment,omitempty"`
	Status      string `json:"status"`
}

// SystemHealth is the GET /health response.
type SystemHealth struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	RunningAgents int       `json:"running_agents"`
	TotalAgents   int       `json:"total_agents"`
}

// Result is a generic success/failure response for lifecycle operations.
type Result struct {
	OK      bool   `json:"ok"`
	Agent   string `json:"agent,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message,omitempty"`
}
