package agent

import (
	"runtime"

	"github.com/ankittk/devcrew/pkg/models"
)

// Integrations reports which collaborators are wired.
func (a *Agent) Integrations() map[string]bool {
	return map[string]bool{
		"messaging":  a.opts.Messenger != nil,
		"code_host":  a.opts.CodeHost != nil,
		"completion": a.opts.Completer != nil,
	}
}

// Health is a read-only snapshot of the live agent.
func (a *Agent) Health() models.Health {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	active := 0
	if a.state.CurrentTask != nil {
		active = 1
	}
	return models.Health{
		Status:               "healthy",
		AgentName:            a.id.Name,
		RuntimeStatus:        a.state.Status,
		Timestamp:            now,
		UptimeSeconds:        now.Sub(a.started).Seconds(),
		SinceActivitySeconds: now.Sub(a.state.LastActivity).Seconds(),
		ActiveTasks:          active,
		LastActivity:         a.state.LastActivity,
		ContextWindowSize:    a.window.Len(),
		MemoryUsage:          models.MemoryUsage{HeapAlloc: ms.HeapAlloc, Sys: ms.Sys},
		Integrations:         a.Integrations(),
	}
}

// Report is the orchestrator's status view of the running agent.
func (a *Agent) Report() models.AgentStatusReport {
	h := a.Health()
	a.mu.Lock()
	defer a.mu.Unlock()
	var task *string
	if a.state.CurrentTask != nil {
		id := *a.state.CurrentTask
		task = &id
	}
	last := a.state.LastActivity
	return models.AgentStatusReport{
		Name:              a.id.Name,
		Status:            a.state.Status,
		CurrentTask:       task,
		LastActivity:      &last,
		ContextWindowSize: a.window.Len(),
		Health:            &h,
	}
}
