package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/orchestrator"
	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/pkg/models"
)

type handlers struct {
	runner  *orchestrator.Runner
	version string
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	cfg := h.runner.Config()
	version := h.version
	if version == "" {
		version = cfg.Version
	}
	writeJSON(w, models.ServiceInfo{
		Name:        firstNonEmpty(cfg.Name, "devcrew"),
		Version:     version,
		Environment: cfg.Environment,
		Status:      "running",
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, models.SystemHealth{
		Status:        "healthy",
		Timestamp:     time.Now().UTC(),
		RunningAgents: len(h.runner.RunningNames()),
		TotalAgents:   len(h.runner.Config().Agents),
	})
}

func (h *handlers) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.runner.Agents())
}

// configured writes 404 and returns false when name is not in the config.
func (h *handlers) configured(w http.ResponseWriter, name string) bool {
	if _, ok := h.runner.Config().Agent(name); !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("agent %q is not configured", name))
		return false
	}
	return true
}

func (h *handlers) getAgent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.configured(w, name) {
		return
	}
	writeJSON(w, h.runner.Status(name))
}

func (h *handlers) startAgent(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "started", h.runner.Start)
}

func (h *handlers) stopAgent(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "stopped", h.runner.Stop)
}

func (h *handlers) restartAgent(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "restarted", h.runner.Restart)
}

func (h *handlers) lifecycle(w http.ResponseWriter, r *http.Request, verb string, op func(ctx context.Context, name string) error) {
	name := r.PathValue("name")
	if !h.configured(w, name) {
		return
	}
	if err := op(r.Context(), name); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, models.Result{OK: true, Agent: name, Message: fmt.Sprintf("agent %s %s", name, verb)})
}

func (h *handlers) agentTasks(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.configured(w, name) {
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	out, err := h.runner.Tasks(r.Context(), name, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, tasksToModel(out))
}

func (h *handlers) agentActivities(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.configured(w, name) {
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	q := r.URL.Query()
	out, err := h.runner.Activities(r.Context(), store.ActivityFilter{
		AgentName: name,
		Type:      q.Get("type"),
		Action:    q.Get("action"),
		Limit:     limit,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, activitiesToModel(out))
}

func (h *handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.configured(w, name) {
		return
	}
	var msg models.Message
	if !decode(w, r, &msg) {
		return
	}
	reply, err := h.runner.ProcessMessage(r.Context(), name, msg)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, models.MessageReply{Agent: name, Response: reply})
}

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	q := r.URL.Query()
	f := store.TaskFilter{AssignedAgent: q.Get("agent"), Limit: limit}
	if s := q.Get("status"); s != "" {
		st, err := models.ParseTaskStatus(s)
		if err != nil {
			writeErr(w, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err))
			return
		}
		f.Status = st
	}
	out, err := h.runner.ListTasks(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, tasksToModel(out))
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var in models.Task
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.AssignedAgent) == "" {
		writeJSONError(w, http.StatusBadRequest, "assigned_agent required")
		return
	}
	t := taskFromModel(in)
	t.AssignedBy = firstNonEmpty(t.AssignedBy, "api")
	if err := h.runner.CreateTask(r.Context(), t); err != nil {
		writeErr(w, err)
		return
	}
	saved, err := h.runner.Task(r.Context(), t.TaskID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, taskToModel(saved))
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.runner.Task(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, taskToModel(t))
}

func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	var in models.TaskUpdate
	if !decode(w, r, &in) {
		return
	}
	if in.Status != models.TaskCompleted && in.Status != models.TaskFailed {
		writeJSONError(w, http.StatusBadRequest, "status must be completed or failed")
		return
	}
	t, err := h.runner.UpdateTaskStatus(r.Context(), r.PathValue("id"), in.Status, in.Result)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, taskToModel(t))
}

func (h *handlers) collaborate(w http.ResponseWriter, r *http.Request) {
	var req models.CollaborationRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TargetAgent) == "" {
		writeJSONError(w, http.StatusBadRequest, "target_agent required")
		return
	}
	name, err := h.runner.RequestCollaboration(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, models.Result{OK: true, Agent: name, Message: fmt.Sprintf("collaboration request sent to %s", req.TargetAgent)})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.runner.Stats(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, s)
}

// decode reads a JSON body into v, writing 400 on malformed input.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func queryLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", errs.ErrInvalidInput)
	}
	return n, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
