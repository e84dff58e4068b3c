// Package storetest is a conformance suite shared by every store.Store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/pkg/models"
)

// Run exercises st against the Store contract. Keys are prefixed with a
// per-run token so suites can share a live database.
func Run(t *testing.T, st store.Store) {
	t.Helper()
	prefix := fmt.Sprintf("st%d-", time.Now().UnixNano())
	ctx := context.Background()

	t.Run("AgentStateRoundTrip", func(t *testing.T) { testAgentState(ctx, t, st, prefix) })
	t.Run("TaskLifecycle", func(t *testing.T) { testTasks(ctx, t, st, prefix) })
	t.Run("Activities", func(t *testing.T) { testActivities(ctx, t, st, prefix) })
	t.Run("Stats", func(t *testing.T) { testStats(ctx, t, st) })
}

func testAgentState(ctx context.Context, t *testing.T, st store.Store, prefix string) {
	name := prefix + "alice"
	if _, err := st.GetAgentState(ctx, name); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetAgentState missing: want ErrNotFound, got %v", err)
	}
	task := "t1"
	now := time.Now().UTC()
	in := &store.AgentState{
		AgentID:      "id-" + name,
		AgentName:    name,
		Status:       models.AgentWorking,
		CurrentTask:  &task,
		LastActivity: now,
		Memory:       map[string]any{"k": "v"},
		Context: []models.ContextEntry{
			{Timestamp: now, Kind: "incoming_message", Payload: map[string]any{"message": "hi"}},
			{Timestamp: now, Kind: "note", Payload: "plain"},
		},
	}
	if err := st.PutAgentState(ctx, in); err != nil {
		t.Fatalf("PutAgentState: %v", err)
	}
	got, err := st.GetAgentState(ctx, name)
	if err != nil {
		t.Fatalf("GetAgentState: %v", err)
	}
	if got.Status != models.AgentWorking || got.CurrentTask == nil || *got.CurrentTask != "t1" {
		t.Fatalf("state mismatch: %+v", got)
	}
	if got.Memory["k"] != "v" {
		t.Fatalf("memory: %v", got.Memory)
	}
	if len(got.Context) != 2 || got.Context[0].Kind != "incoming_message" || got.Context[1].Payload != "plain" {
		t.Fatalf("context: %+v", got.Context)
	}
	if m, ok := got.Context[0].Payload.(map[string]any); !ok || m["message"] != "hi" {
		t.Fatalf("payload: %#v", got.Context[0].Payload)
	}

	// Last write wins.
	in.Status = models.AgentIdle
	in.CurrentTask = nil
	in.Context = nil
	if err := st.PutAgentState(ctx, in); err != nil {
		t.Fatalf("PutAgentState overwrite: %v", err)
	}
	got, err = st.GetAgentState(ctx, name)
	if err != nil {
		t.Fatalf("GetAgentState: %v", err)
	}
	if got.Status != models.AgentIdle || got.CurrentTask != nil || len(got.Context) != 0 {
		t.Fatalf("overwrite not applied: %+v", got)
	}
}

func testTasks(ctx context.Context, t *testing.T, st store.Store, prefix string) {
	agent := prefix + "bob"
	now := time.Now().UTC()
	t1 := &store.Task{
		TaskID:             prefix + "t1",
		Title:              "Build API",
		Description:        "REST endpoints",
		AssignedAgent:      agent,
		AssignedBy:         "pm",
		Priority:           "high",
		Dependencies:       []string{prefix + "t0"},
		AcceptanceCriteria: []string{"tests pass", "documented"},
		Status:             models.TaskAssigned,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := st.CreateTask(ctx, t1); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := st.CreateTask(ctx, t1); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate CreateTask: want ErrConflict, got %v", err)
	}
	t2 := *t1
	t2.TaskID = prefix + "t2"
	t2.Dependencies = nil
	t2.CreatedAt = now.Add(time.Second)
	if err := st.CreateTask(ctx, &t2); err != nil {
		t.Fatalf("CreateTask t2: %v", err)
	}

	got, err := st.GetTask(ctx, t1.TaskID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Title != "Build API" || got.Priority != "high" || got.Status != models.TaskAssigned {
		t.Fatalf("task mismatch: %+v", got)
	}
	if len(got.Dependencies) != 1 || len(got.AcceptanceCriteria) != 2 || got.AcceptanceCriteria[1] != "documented" {
		t.Fatalf("lists mismatch: %+v", got)
	}
	if _, err := st.GetTask(ctx, prefix+"missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetTask missing: want ErrNotFound, got %v", err)
	}

	done := now.Add(time.Minute)
	got.Status = models.TaskCompleted
	got.Result = "shipped"
	got.UpdatedAt = done
	got.CompletedAt = &done
	if err := st.UpdateTask(ctx, got); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	got, err = st.GetTask(ctx, t1.TaskID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != models.TaskCompleted || got.Result != "shipped" || got.CompletedAt == nil {
		t.Fatalf("update not applied: %+v", got)
	}
	missing := *got
	missing.TaskID = prefix + "nope"
	if err := st.UpdateTask(ctx, &missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("UpdateTask missing: want ErrNotFound, got %v", err)
	}

	list, err := st.ListTasks(ctx, store.TaskFilter{AssignedAgent: agent})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(list) != 2 || list[0].TaskID != t2.TaskID {
		t.Fatalf("ListTasks want newest first, got %+v", list)
	}
	list, err = st.ListTasks(ctx, store.TaskFilter{AssignedAgent: agent, Status: models.TaskCompleted})
	if err != nil {
		t.Fatalf("ListTasks by status: %v", err)
	}
	if len(list) != 1 || list[0].TaskID != t1.TaskID {
		t.Fatalf("ListTasks by status: %+v", list)
	}
	list, err = st.ListTasks(ctx, store.TaskFilter{AssignedAgent: agent, Limit: 1})
	if err != nil {
		t.Fatalf("ListTasks limit: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListTasks limit: got %d", len(list))
	}
}

func testActivities(ctx context.Context, t *testing.T, st store.Store, prefix string) {
	agent := prefix + "carol"
	base := time.Now().UTC()
	for i, action := range []string{"request_sent", "message_processed", "request_sent"} {
		typ := "collaboration"
		if action == "message_processed" {
			typ = "slack"
		}
		a := &store.Activity{
			ID:        fmt.Sprintf("%sa%d", prefix, i),
			AgentID:   "id-" + agent,
			AgentName: agent,
			Type:      typ,
			Action:    action,
			Details:   map[string]any{"n": i},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := st.AppendActivity(ctx, a); err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
	}
	all, err := st.ListActivities(ctx, store.ActivityFilter{AgentName: agent})
	if err != nil {
		t.Fatalf("ListActivities: %v", err)
	}
	if len(all) != 3 || all[0].ID != prefix+"a2" {
		t.Fatalf("ListActivities want newest first, got %+v", all)
	}
	collab, err := st.ListActivities(ctx, store.ActivityFilter{AgentName: agent, Type: "collaboration", Action: "request_sent"})
	if err != nil {
		t.Fatalf("ListActivities filtered: %v", err)
	}
	if len(collab) != 2 {
		t.Fatalf("want 2 collaboration activities, got %d", len(collab))
	}
	if collab[0].Details["n"] == nil {
		t.Fatalf("details lost: %+v", collab[0])
	}
}

func testStats(ctx context.Context, t *testing.T, st store.Store) {
	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Tasks < 2 || stats.Activities < 3 || stats.AgentStates < 1 {
		t.Fatalf("stats too small: %+v", stats)
	}
	if stats.TasksByStatus[string(models.TaskCompleted)] < 1 {
		t.Fatalf("tasks by status: %+v", stats.TasksByStatus)
	}
}
