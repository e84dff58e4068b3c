package models

import (
	"fmt"
	"strings"
)

// Role is the closed set of agent roles.
type Role string

const (
	RoleArchitect      Role = "architect"
	RoleFrontend       Role = "frontend"
	RoleBackend        Role = "backend"
	RoleQA             Role = "qa"
	RoleDevOps         Role = "devops"
	RoleProductManager Role = "product_manager"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleArchitect, RoleFrontend, RoleBackend, RoleQA, RoleDevOps, RoleProductManager}

// ParseRole accepts a role name, treating "-" and "_" as equivalent.
func ParseRole(s string) (Role, error) {
	norm := Role(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, r := range Roles {
		if r == norm {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// AgentStatus is the runtime status of a live agent.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentWorking AgentStatus = "working"
	AgentError   AgentStatus = "error"
	// AgentNotRunning is reported for configured agents that are not in the registry.
	AgentNotRunning AgentStatus = "not_running"
)

// Valid reports whether s is a status a persisted agent state may carry.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentIdle, AgentWorking, AgentError:
		return true
	}
	return false
}

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	TaskAssigned  TaskStatus = "assigned"
	TaskWorking   TaskStatus = "working"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// ParseTaskStatus validates a task status string.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch st := TaskStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case TaskAssigned, TaskWorking, TaskCompleted, TaskFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// RequestType classifies messages and collaboration requests.
type RequestType string

const (
	RequestTaskAssignment         RequestType = "task_assignment"
	RequestCodeReview             RequestType = "code_review"
	RequestStatusUpdate           RequestType = "status_update"
	RequestCollaboration          RequestType = "collaboration_request"
	RequestDebugging              RequestType = "debugging_request"
	RequestArchitectureDiscussion RequestType = "architecture_discussion"
)

// RequestTypes is the closed set of request types.
var RequestTypes = []RequestType{
	RequestTaskAssignment,
	RequestCodeReview,
	RequestStatusUpdate,
	RequestCollaboration,
	RequestDebugging,
	RequestArchitectureDiscussion,
}

// ParseRequestType returns the request type named by s. Matching is exact.
func ParseRequestType(s string) (RequestType, bool) {
	for _, rt := range RequestTypes {
		if string(rt) == s {
			return rt, true
		}
	}
	return "", false
}

// Priority defaults.
const (
	PriorityLow     = "low"
	PriorityMedium  = "medium"
	PriorityHigh    = "high"
	MaxPriorityLen  = 32
	DefaultPriority = PriorityMedium
)

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultTaskListLimit       = 1000
	DefaultActivityListLimit   = 500
	DefaultSSEChannelBuffer    = 256
	ContextWindowCapacity      = 50
	ContextSummaryEntries      = 10
)
