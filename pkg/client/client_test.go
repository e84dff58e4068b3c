package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ankittk/devcrew/pkg/models"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:8000", "")
	if c.BaseURL != "http://localhost:8000" || c.APIKey != "" {
		t.Errorf("New: %+v", c)
	}
	c2 := New("http://localhost:8000", "secret")
	if c2.APIKey != "secret" {
		t.Errorf("New with key: %+v", c2)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","running_agents":2,"total_agents":3}`))
	}))
	defer srv.Close()

	h, err := New(srv.URL, "").Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != "healthy" || h.RunningAgents != 2 || h.TotalAgents != 3 {
		t.Fatalf("Health: %+v", h)
	}
}

func TestHealth_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Health(context.Background())
	if err == nil {
		t.Fatal("expected error from 503")
	}
	ae, ok := err.(*APIError)
	if !ok || ae.Status != 503 || ae.Message != "down" {
		t.Fatalf("error = %#v", err)
	}
}

func TestClient_setsAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	_, _ = New(srv.URL, "mykey").Health(context.Background())
	if gotKey != "mykey" {
		t.Errorf("X-API-Key: got %q", gotKey)
	}
}

func TestIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"agent \"zed\" is not configured"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").AgentStatus(context.Background(), "zed")
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false", err)
	}
	if IsNotFound(nil) {
		t.Fatal("IsNotFound(nil) = true")
	}
}

func TestRoutes(t *testing.T) {
	type call struct{ method, path, query string }
	var got []call
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, call{r.Method, r.URL.Path, r.URL.RawQuery})
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/agents/alice/messages":
			_, _ = w.Write([]byte(`{"agent":"alice","response":"on it"}`))
		case r.URL.Path == "/collaboration":
			_, _ = w.Write([]byte(`{"ok":true,"agent":"alice"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/tasks":
			_, _ = w.Write([]byte(`[{"task_id":"t1","title":"x","assigned_agent":"bob","status":"assigned"}]`))
		default:
			_, _ = w.Write([]byte(`{"task_id":"t1","status":"completed","ok":true}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := New(srv.URL, "")
	if err := c.StartAgent(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if err := c.RestartAgent(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	reply, err := c.SendMessage(ctx, "alice", models.Message{Text: "status?"})
	if err != nil || reply != "on it" {
		t.Fatalf("SendMessage: %q %v", reply, err)
	}
	by, err := c.RequestCollaboration(ctx, models.CollaborationRequest{TargetAgent: "bob", RequestType: models.RequestType("code_review")})
	if err != nil || by != "alice" {
		t.Fatalf("RequestCollaboration: %q %v", by, err)
	}
	list, err := c.ListTasks(ctx, "bob", models.TaskAssigned, 5)
	if err != nil || len(list) != 1 || list[0].AssignedAgent != "bob" {
		t.Fatalf("ListTasks: %+v %v", list, err)
	}
	task, err := c.UpdateTask(ctx, "t1", models.TaskCompleted, "done")
	if err != nil || task.Status != models.TaskCompleted {
		t.Fatalf("UpdateTask: %+v %v", task, err)
	}
	if err := c.StopAgent(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	want := []call{
		{"POST", "/agents/alice/start", ""},
		{"POST", "/agents/alice/restart", ""},
		{"POST", "/agents/alice/messages", ""},
		{"POST", "/collaboration", ""},
		{"GET", "/tasks", "agent=bob&limit=5&status=assigned"},
		{"PATCH", "/tasks/t1", ""},
		{"POST", "/agents/alice/stop", ""},
	}
	if len(got) != len(want) {
		t.Fatalf("calls = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if bodies[5]["status"] != "completed" || bodies[5]["result"] != "done" {
		t.Errorf("patch body = %v", bodies[5])
	}
}
