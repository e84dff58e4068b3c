package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ankittk/devcrew/internal/codehost"
	"github.com/ankittk/devcrew/internal/completion"
	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/internal/events"
	"github.com/ankittk/devcrew/internal/memory"
	"github.com/ankittk/devcrew/internal/messaging"
	"github.com/ankittk/devcrew/internal/store"
	"github.com/ankittk/devcrew/internal/tasks"
	"github.com/ankittk/devcrew/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCompleter struct{ mock.Mock }

func (m *mockCompleter) Name() string { return "mock" }
func (m *mockCompleter) Complete(ctx context.Context, req completion.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockMessenger struct{ mock.Mock }

func (m *mockMessenger) Name() string { return "slack" }
func (m *mockMessenger) Start(ctx context.Context, h messaging.Handler) error {
	return m.Called(ctx, h).Error(0)
}
func (m *mockMessenger) Stop(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockMessenger) Send(ctx context.Context, channel, text, thread string) error {
	return m.Called(ctx, channel, text, thread).Error(0)
}

type mockCodeHost struct {
	mock.Mock
	codehost.Client
}

func (m *mockCodeHost) Name() string { return "github" }
func (m *mockCodeHost) CreatePullRequest(ctx context.Context, pr codehost.PullRequest) (int, string, error) {
	args := m.Called(ctx, pr)
	return args.Int(0), args.String(1), args.Error(2)
}
func (m *mockCodeHost) CreateFile(ctx context.Context, f codehost.FileChange) (string, error) {
	args := m.Called(ctx, f)
	return args.String(0), args.Error(1)
}

// countingStore counts writes and can fail them on demand.
type countingStore struct {
	store.Store
	mu           sync.Mutex
	writes       int
	failPut      error
	failCreate   error
	failActivity error
}

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func (c *countingStore) reset() {
	c.mu.Lock()
	c.writes = 0
	c.mu.Unlock()
}

func (c *countingStore) hit(fail error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	return fail
}

func (c *countingStore) PutAgentState(ctx context.Context, st *store.AgentState) error {
	if err := c.hit(c.failPut); err != nil {
		return err
	}
	return c.Store.PutAgentState(ctx, st)
}

func (c *countingStore) CreateTask(ctx context.Context, t *store.Task) error {
	if err := c.hit(c.failCreate); err != nil {
		return err
	}
	return c.Store.CreateTask(ctx, t)
}

func (c *countingStore) UpdateTask(ctx context.Context, t *store.Task) error {
	if err := c.hit(nil); err != nil {
		return err
	}
	return c.Store.UpdateTask(ctx, t)
}

func (c *countingStore) AppendActivity(ctx context.Context, a *store.Activity) error {
	if err := c.hit(c.failActivity); err != nil {
		return err
	}
	return c.Store.AppendActivity(ctx, a)
}

func openStore(t testing.TB) *countingStore {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "home"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return &countingStore{Store: st}
}

func newAgent(t testing.TB, st store.Store, opts Options) *Agent {
	t.Helper()
	opts.Store = st
	id := NewIdentity("alice", models.RoleBackend)
	id.Personality = "calm"
	a, err := New(context.Background(), id, opts)
	require.NoError(t, err)
	return a
}

func kinds(entries []models.ContextEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Kind
	}
	return out
}

func TestContextWindow_boundAndOrder(t *testing.T) {
	w := NewContextWindow(models.ContextWindowCapacity, nil)
	for i := 0; i < 137; i++ {
		w.Append(models.ContextEntry{Kind: KindIncomingMessage, Payload: i})
		require.LessOrEqual(t, w.Len(), models.ContextWindowCapacity)
	}
	got := w.Entries()
	require.Len(t, got, models.ContextWindowCapacity)
	for i, e := range got {
		assert.Equal(t, 87+i, e.Payload, "entry %d", i)
	}
}

func TestContextWindow_seedKeepsNewest(t *testing.T) {
	var seed []models.ContextEntry
	for i := 0; i < 60; i++ {
		seed = append(seed, models.ContextEntry{Payload: i})
	}
	w := NewContextWindow(50, seed)
	assert.Equal(t, 50, w.Len())
	assert.Equal(t, 10, w.Entries()[0].Payload)
}

func TestContextWindow_Summary(t *testing.T) {
	w := NewContextWindow(50, nil)
	assert.Equal(t, "No recent context available.", w.Summary(10))

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.Append(models.ContextEntry{Timestamp: ts, Kind: KindIncomingMessage, Payload: map[string]any{"summary": "carol: hi"}})
	w.Append(models.ContextEntry{Timestamp: ts, Kind: KindCollaborationRequested, Payload: map[string]any{"target_agent": "bob"}})
	w.Append(models.ContextEntry{Timestamp: ts, Kind: "note", Payload: "plain"})
	lines := strings.Split(w.Summary(10), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[2025-03-01T12:00:00Z] incoming_message: carol: hi", lines[0])
	assert.Equal(t, `[2025-03-01T12:00:00Z] collaboration_requested: {"target_agent":"bob"}`, lines[1])
	assert.Equal(t, "[2025-03-01T12:00:00Z] plain", lines[2])

	// maps without a usable summary render as JSON with sorted keys
	other := NewContextWindow(50, nil)
	other.Append(models.ContextEntry{Timestamp: ts, Kind: KindTaskCompleted, Payload: map[string]any{"task_id": "t1", "result": "ok", "summary": ""}})
	other.Append(models.ContextEntry{Timestamp: ts, Kind: "metric", Payload: map[string]any{"value": math.Inf(1)}})
	lines = strings.Split(other.Summary(10), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `[2025-03-01T12:00:00Z] task_completed: {"result":"ok","summary":"","task_id":"t1"}`, lines[0])
	assert.Equal(t, "[2025-03-01T12:00:00Z] metric: map[value:+Inf]", lines[1])

	for i := 0; i < 20; i++ {
		w.Append(models.ContextEntry{Timestamp: ts, Kind: "n", Payload: fmt.Sprint(i)})
	}
	lines = strings.Split(w.Summary(10), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "[2025-03-01T12:00:00Z] 10", lines[0])
	assert.Equal(t, "[2025-03-01T12:00:00Z] 19", lines[9])
}

func TestIDFor_stable(t *testing.T) {
	assert.Equal(t, IDFor("alice"), IDFor("alice"))
	assert.NotEqual(t, IDFor("alice"), IDFor("bob"))
	assert.Equal(t, IDFor("alice"), NewIdentity("alice", models.RoleBackend).ID)
}

func TestNew_createsIdleState(t *testing.T) {
	st := openStore(t)
	a := newAgent(t, st, Options{})
	saved, err := st.GetAgentState(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, models.AgentIdle, saved.Status)
	assert.Nil(t, saved.CurrentTask)
	assert.Equal(t, IDFor("alice"), saved.AgentID)
	assert.Equal(t, models.AgentIdle, a.State().Status)
}

func TestNew_normalizesBrokenState(t *testing.T) {
	ctx := context.Background()
	cases := map[string]*store.AgentState{
		"working without task": {AgentName: "alice", Status: models.AgentWorking},
		"task while idle":      {AgentName: "alice", Status: models.AgentIdle, CurrentTask: ptr("t9")},
		"unknown status":       {AgentName: "alice", Status: "sleeping"},
	}
	for name, broken := range cases {
		t.Run(name, func(t *testing.T) {
			st := openStore(t)
			require.NoError(t, st.PutAgentState(ctx, broken))
			a := newAgent(t, st, Options{})
			got := a.State()
			assert.Equal(t, models.AgentError, got.Status)
			assert.Nil(t, got.CurrentTask)
			assert.NotEmpty(t, got.Memory["last_error"])

			saved, err := st.GetAgentState(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, models.AgentError, saved.Status)
		})
	}
}

func TestNew_reconcilesCurrentTaskWithLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("missing task", func(t *testing.T) {
		st := openStore(t)
		require.NoError(t, st.PutAgentState(ctx, &store.AgentState{AgentName: "alice", Status: models.AgentWorking, CurrentTask: ptr("t9")}))
		a := newAgent(t, st, Options{})
		got := a.State()
		assert.Equal(t, models.AgentError, got.Status)
		assert.Nil(t, got.CurrentTask)
		assert.Contains(t, got.Memory["last_error"], "t9")
	})

	t.Run("task closed", func(t *testing.T) {
		st := openStore(t)
		l := tasks.New(st)
		require.NoError(t, l.Create(ctx, &store.Task{TaskID: "t1", Title: "x", AssignedAgent: "alice"}))
		_, err := l.SetStatus(ctx, "t1", models.TaskFailed, "broke")
		require.NoError(t, err)
		require.NoError(t, st.PutAgentState(ctx, &store.AgentState{AgentName: "alice", Status: models.AgentWorking, CurrentTask: ptr("t1")}))

		a := newAgent(t, st, Options{})
		got := a.State()
		assert.Equal(t, models.AgentIdle, got.Status)
		assert.Nil(t, got.CurrentTask)
		saved, err := st.GetAgentState(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, saved.CurrentTask)
	})

	t.Run("task still open", func(t *testing.T) {
		st := openStore(t)
		require.NoError(t, tasks.New(st).Create(ctx, &store.Task{TaskID: "t1", Title: "x", AssignedAgent: "alice"}))
		require.NoError(t, st.PutAgentState(ctx, &store.AgentState{AgentName: "alice", Status: models.AgentWorking, CurrentTask: ptr("t1")}))
		a := newAgent(t, st, Options{})
		got := a.State()
		assert.Equal(t, models.AgentWorking, got.Status)
		require.NotNil(t, got.CurrentTask)
		assert.Equal(t, "t1", *got.CurrentTask)
	})
}

func TestNew_requiresStore(t *testing.T) {
	_, err := New(context.Background(), NewIdentity("alice", models.RoleBackend), Options{})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestProcessMessage(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, mock.MatchedBy(func(r completion.Request) bool {
		return strings.Contains(r.Prompt, "incoming_message: carol: can you review my PR?") &&
			strings.Contains(r.Prompt, "Message: can you review my PR?") &&
			strings.Contains(r.Prompt, "Message type: code_review") &&
			strings.Contains(r.Prompt, "Personality: calm") &&
			strings.Contains(r.System, "alice")
	})).Return("Sure, on it.", nil)
	a := newAgent(t, st, Options{Completer: mc})

	reply := a.ProcessMessage(ctx, "can you review my PR?", "#dev", "carol", "")
	assert.Equal(t, "Sure, on it.", reply)
	mc.AssertExpectations(t)

	state := a.State()
	assert.Equal(t, []string{KindIncomingMessage, KindOutgoingMessage}, kinds(state.Context))
	assert.Contains(t, a.ContextSummary(1), "outgoing_message: Sure, on it.")

	acts, err := st.ListActivities(ctx, store.ActivityFilter{AgentName: "alice", Action: "message_processed"})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "agent", acts[0].Type)
	assert.Equal(t, "code_review", acts[0].Details["message_type"])
}

func TestProcessMessage_passesExplicitZeroTemperature(t *testing.T) {
	zero := 0.0
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, mock.MatchedBy(func(r completion.Request) bool {
		return r.Temperature != nil && *r.Temperature == 0
	})).Return("ok", nil)
	a := newAgent(t, openStore(t), Options{Completer: mc, Temperature: &zero})

	assert.Equal(t, "ok", a.ProcessMessage(context.Background(), "hi", "#dev", "carol", ""))
	mc.AssertExpectations(t)
}

func TestProcessMessage_truncatesActivity(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	long := strings.Repeat("é", 250)
	a := newAgent(t, st, Options{Completer: completion.Stub{Reply: long}})
	a.ProcessMessage(ctx, long, "#dev", "carol", models.RequestStatusUpdate)

	acts, err := st.ListActivities(ctx, store.ActivityFilter{Action: "message_processed"})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, 100, len([]rune(acts[0].Details["message"].(string))))
	assert.Equal(t, 100, len([]rune(acts[0].Details["response"].(string))))
}

func TestProcessMessage_fallbackOnCompletionFailure(t *testing.T) {
	st := openStore(t)
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("rate limited"))
	a := newAgent(t, st, Options{Completer: mc})

	reply := a.ProcessMessage(context.Background(), "status?", "#dev", "carol", models.RequestStatusUpdate)
	assert.Equal(t, FallbackReply, reply)
	state := a.State()
	require.Len(t, state.Context, 2)
	assert.Equal(t, FallbackReply, state.Context[1].Payload.(map[string]any)["response"])
}

func TestProcessMessage_noCompleter(t *testing.T) {
	a := newAgent(t, openStore(t), Options{})
	assert.Equal(t, FallbackReply, a.ProcessMessage(context.Background(), "hi", "", "", ""))
}

func TestProcessMessage_windowStaysBounded(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	a := newAgent(t, st, Options{Completer: completion.Stub{}})
	for i := 0; i < 40; i++ {
		a.ProcessMessage(ctx, fmt.Sprintf("msg %d", i), "#dev", "carol", models.RequestStatusUpdate)
		require.LessOrEqual(t, len(a.State().Context), models.ContextWindowCapacity)
	}
	entries := a.State().Context
	require.Len(t, entries, models.ContextWindowCapacity)
	// 80 entries were appended; the survivors are the newest 50 in order, starting at message 15.
	first := entries[0].Payload.(map[string]any)
	assert.Equal(t, "msg 15", first["message"])
	last := entries[len(entries)-1]
	assert.Equal(t, KindOutgoingMessage, last.Kind)

	saved, err := st.GetAgentState(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, saved.Context, models.ContextWindowCapacity)
}

func TestAssignTask_healthAndLedgerContract(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	a := newAgent(t, st, Options{})

	task := &store.Task{TaskID: "t1", Title: "Build login API"}
	require.NoError(t, a.AssignTask(ctx, task))

	h := a.Health()
	assert.Equal(t, 1, h.ActiveTasks)
	assert.Equal(t, models.AgentWorking, h.RuntimeStatus)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, map[string]bool{"messaging": false, "code_host": false, "completion": false}, h.Integrations)

	// The ledger promotes the adopted task from assigned to working.
	got, err := tasks.New(st).Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskWorking, got.Status)
	assert.Equal(t, "alice", got.AssignedAgent)
	assert.Equal(t, models.DefaultPriority, got.Priority)

	state := a.State()
	require.NotNil(t, state.CurrentTask)
	assert.Equal(t, "t1", *state.CurrentTask)
	assert.Equal(t, []string{KindTaskAssigned}, kinds(state.Context))
}

func TestAssignTask_wrongAssignee(t *testing.T) {
	a := newAgent(t, openStore(t), Options{})
	err := a.AssignTask(context.Background(), &store.Task{TaskID: "t1", Title: "x", AssignedAgent: "bob"})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestAssignTask_persistenceFailureLeavesStateIntact(t *testing.T) {
	st := openStore(t)
	a := newAgent(t, st, Options{})
	st.failCreate = errors.New("disk full")

	err := a.AssignTask(context.Background(), &store.Task{TaskID: "t1", Title: "x"})
	assert.ErrorIs(t, err, errs.ErrPersistence)
	state := a.State()
	assert.Equal(t, models.AgentIdle, state.Status)
	assert.Nil(t, state.CurrentTask)
	assert.Empty(t, state.Context)
}

func TestAssignTask_stateSaveFailure(t *testing.T) {
	st := openStore(t)
	a := newAgent(t, st, Options{})
	st.failPut = errors.New("locked")

	err := a.AssignTask(context.Background(), &store.Task{TaskID: "t1", Title: "x"})
	assert.ErrorIs(t, err, errs.ErrPersistence)
	assert.Equal(t, models.AgentIdle, a.State().Status)
}

func TestCompleteTask_currentTask(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	home := t.TempDir()
	a := newAgent(t, st, Options{Journal: &memory.Journal{AgentName: "alice", Home: home}})

	require.NoError(t, a.AssignTask(ctx, &store.Task{TaskID: "t1", Title: "Build login API"}))
	require.NoError(t, a.CompleteTask(ctx, "t1", "done"))

	state := a.State()
	assert.Equal(t, models.AgentIdle, state.Status)
	assert.Nil(t, state.CurrentTask)
	assert.Equal(t, []string{KindTaskAssigned, KindTaskCompleted}, kinds(state.Context))

	got, err := st.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, got.Status)
	assert.Equal(t, "done", got.Result)
	assert.NotNil(t, got.CompletedAt)

	journal, err := (&memory.Journal{AgentName: "alice", Home: home}).Read(ctx, 0)
	require.NoError(t, err)
	assert.Contains(t, journal, "Build login API")
	assert.Contains(t, journal, "completed")
}

type eventLog struct {
	mu    sync.Mutex
	types []string
}

func (l *eventLog) Publish(_ context.Context, ev events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types = append(l.types, ev.Type)
	return nil
}

func TestCompleteTask_repeatHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	home := t.TempDir()
	evs := &eventLog{}
	a := newAgent(t, st, Options{Journal: &memory.Journal{AgentName: "alice", Home: home}, Publisher: evs})

	require.NoError(t, a.AssignTask(ctx, &store.Task{TaskID: "t1", Title: "Build login API"}))
	require.NoError(t, a.CompleteTask(ctx, "t1", "done"))
	require.NoError(t, a.CompleteTask(ctx, "t1", "done again"))

	assert.Equal(t, []string{KindTaskAssigned, KindTaskCompleted}, kinds(a.State().Context))
	assert.Equal(t, []string{events.TaskAssigned, events.TaskCompleted}, evs.types)
	journal, err := (&memory.Journal{AgentName: "alice", Home: home}).Read(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(journal, "Build login API"))

	got, err := st.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "done", got.Result)
}

// Completing a task that is not the agent's current task is allowed: the
// ledger transitions it, the agent records it, and the current task is kept.
func TestCompleteTask_notCurrentTaskIsLenient(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	a := newAgent(t, st, Options{})
	require.NoError(t, a.AssignTask(ctx, &store.Task{TaskID: "t1", Title: "mine"}))
	require.NoError(t, tasks.New(st).Create(ctx, &store.Task{TaskID: "t2", Title: "bob's", AssignedAgent: "bob"}))

	require.NoError(t, a.CompleteTask(ctx, "t2", "done anyway"))

	state := a.State()
	assert.Equal(t, models.AgentWorking, state.Status)
	require.NotNil(t, state.CurrentTask)
	assert.Equal(t, "t1", *state.CurrentTask)
	assert.Equal(t, KindTaskCompleted, state.Context[len(state.Context)-1].Kind)

	got, err := st.GetTask(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, got.Status)
}

func TestCompleteTask_unknownTask(t *testing.T) {
	a := newAgent(t, openStore(t), Options{})
	err := a.CompleteTask(context.Background(), "nope", "x")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Empty(t, a.State().Context)
}

func TestFailTask(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	a := newAgent(t, st, Options{})
	require.NoError(t, a.AssignTask(ctx, &store.Task{TaskID: "t1", Title: "x"}))
	require.NoError(t, a.FailTask(ctx, "t1", "blocked on infra"))

	state := a.State()
	assert.Equal(t, models.AgentIdle, state.Status)
	assert.Equal(t, KindTaskFailed, state.Context[len(state.Context)-1].Kind)
	got, err := st.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, got.Status)

	// failed is not terminal; completed is
	require.NoError(t, a.CompleteTask(ctx, "t1", "fixed"))
	assert.ErrorIs(t, a.FailTask(ctx, "t1", "again"), errs.ErrTaskClosed)
}

func TestRequestCollaboration_invalidTypeWritesNothing(t *testing.T) {
	st := openStore(t)
	mm := &mockMessenger{}
	a := newAgent(t, st, Options{Messenger: mm, DefaultChannel: "#dev"})
	st.reset()

	for _, bad := range []string{"", "review", "CODE_REVIEW", "code_review ", "task-assignment", "💥", strings.Repeat("x", 500)} {
		err := a.RequestCollaboration(context.Background(), models.CollaborationRequest{
			TargetAgent: "bob",
			RequestType: models.RequestType(bad),
			Description: "help",
		})
		assert.ErrorIs(t, err, errs.ErrInvalidRequestType, "%q", bad)
	}
	assert.Zero(t, st.count())
	assert.Empty(t, a.State().Context)
	mm.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func FuzzRequestCollaboration(f *testing.F) {
	for _, seed := range [][3]string{
		{"", "bob", ""},
		{"review", "bob", "high"},
		{"CODE_REVIEW", "", "urgent"},
		{"code_review\x00", "bob", "low"},
		{"task_assignment ", "bob", "bogus"},
	} {
		f.Add(seed[0], seed[1], seed[2])
	}
	st := openStore(f)
	mm := &mockMessenger{}
	a := newAgent(f, st, Options{Messenger: mm, DefaultChannel: "#dev"})

	f.Fuzz(func(t *testing.T, typ, target, priority string) {
		if _, ok := models.ParseRequestType(typ); ok {
			t.Skip()
		}
		st.reset()
		err := a.RequestCollaboration(context.Background(), models.CollaborationRequest{
			TargetAgent: target,
			RequestType: models.RequestType(typ),
			Description: "help",
			Priority:    priority,
		})
		if !errors.Is(err, errs.ErrInvalidRequestType) {
			t.Fatalf("RequestCollaboration(%q) = %v, want ErrInvalidRequestType", typ, err)
		}
		if n := st.count(); n != 0 {
			t.Fatalf("RequestCollaboration(%q) wrote %d times", typ, n)
		}
		if got := a.State().Context; len(got) != 0 {
			t.Fatalf("RequestCollaboration(%q) added context %v", typ, kinds(got))
		}
	})
}

func TestRequestCollaboration(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	mm := &mockMessenger{}
	mm.On("Send", mock.Anything, "#dev", mock.MatchedBy(func(s string) bool {
		return strings.Contains(s, "alice") && strings.Contains(s, "bob") && strings.Contains(s, "code_review")
	}), "").Return(nil)
	a := newAgent(t, st, Options{Messenger: mm, DefaultChannel: "#dev"})

	err := a.RequestCollaboration(ctx, models.CollaborationRequest{
		TargetAgent: "bob",
		RequestType: models.RequestCodeReview,
		Description: "please look at PR 7",
		Priority:    "High",
	})
	require.NoError(t, err)
	mm.AssertExpectations(t)

	acts, err := st.ListActivities(ctx, store.ActivityFilter{Type: "collaboration", Action: "request_sent"})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "bob", acts[0].Details["target_agent"])
	assert.Equal(t, "high", acts[0].Details["priority"])
	assert.Equal(t, []string{KindCollaborationRequested}, kinds(a.State().Context))
}

func TestRequestCollaboration_noticeFailureIsNotFatal(t *testing.T) {
	mm := &mockMessenger{}
	mm.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("offline"))
	a := newAgent(t, openStore(t), Options{Messenger: mm, DefaultChannel: "#dev"})
	err := a.RequestCollaboration(context.Background(), models.CollaborationRequest{TargetAgent: "bob", RequestType: models.RequestDebugging})
	assert.NoError(t, err)
}

func TestRequestCollaboration_activityFailure(t *testing.T) {
	st := openStore(t)
	a := newAgent(t, st, Options{})
	st.failActivity = errors.New("readonly")
	err := a.RequestCollaboration(context.Background(), models.CollaborationRequest{TargetAgent: "bob", RequestType: models.RequestDebugging})
	assert.ErrorIs(t, err, errs.ErrPersistence)
	assert.Empty(t, a.State().Context)
}

func TestRequestCollaboration_invalidPriority(t *testing.T) {
	a := newAgent(t, openStore(t), Options{})
	err := a.RequestCollaboration(context.Background(), models.CollaborationRequest{TargetAgent: "bob", RequestType: models.RequestDebugging, Priority: "very high"})
	assert.ErrorIs(t, err, errs.ErrInvalidPriority)
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	a := newAgent(t, openStore(t), Options{})
	assert.ErrorIs(t, a.SendMessage(ctx, "#dev", "hi", ""), errs.ErrIntegrationUnavailable)

	mm := &mockMessenger{}
	mm.On("Send", mock.Anything, "#general", "hello team", "").Return(nil)
	a = newAgent(t, openStore(t), Options{Messenger: mm, DefaultChannel: "#general"})
	require.NoError(t, a.SendMessage(ctx, "", "hello team", ""))
	mm.AssertExpectations(t)
	assert.Equal(t, []string{KindMessageSent}, kinds(a.State().Context))
}

func TestHandleInbound(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	a := newAgent(t, st, Options{Completer: completion.Stub{Reply: "on it"}})
	reply := a.HandleInbound(ctx, messaging.Inbound{Platform: "slack", Channel: "C1", Sender: "U1", Text: "found a bug"})
	assert.Equal(t, "on it", reply)

	acts, err := st.ListActivities(ctx, store.ActivityFilter{Action: "message_received"})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "slack", acts[0].Type)
	in := a.State().Context[0].Payload.(map[string]any)
	assert.Equal(t, "debugging_request", in["message_type"])

	assert.Equal(t, "", a.HandleInbound(ctx, messaging.Inbound{}))
}

func TestCodeHostOperations(t *testing.T) {
	ctx := context.Background()
	a := newAgent(t, openStore(t), Options{})
	_, _, err := a.OpenPullRequest(ctx, codehost.PullRequest{Title: "x"})
	assert.ErrorIs(t, err, errs.ErrIntegrationUnavailable)
	_, err = a.CommitFiles(ctx, "", "", "msg", nil)
	assert.ErrorIs(t, err, errs.ErrIntegrationUnavailable)

	ch := &mockCodeHost{}
	ch.On("CreatePullRequest", mock.Anything, codehost.PullRequest{Repo: "acme/shop", Title: "Add cart", Head: "feat/cart", Base: "develop"}).
		Return(7, "https://example.test/pull/7", nil)
	ch.On("CreateFile", mock.Anything, codehost.FileChange{Repo: "acme/shop", Path: "cart.go", Content: "package cart", Message: "add cart", Branch: "feat/cart"}).
		Return("sha1", nil)
	a = newAgent(t, openStore(t), Options{CodeHost: ch, DefaultRepo: "acme/shop", BaseBranch: "develop"})

	shas, err := a.CommitFiles(ctx, "", "feat/cart", "add cart", []FileOp{{Path: "cart.go", Content: "package cart"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"sha1"}, shas)

	n, url, err := a.OpenPullRequest(ctx, codehost.PullRequest{Title: "Add cart", Head: "feat/cart"})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "https://example.test/pull/7", url)
	ch.AssertExpectations(t)
	assert.Equal(t, []string{KindGitHubCommit, KindGitHubPRCreated}, kinds(a.State().Context))

	_, err = a.CommitFiles(ctx, "", "", "x", []FileOp{{Action: "rename", Path: "a"}})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestShutdown(t *testing.T) {
	ctx := context.Background()
	mm := &mockMessenger{}
	mm.On("Stop", mock.Anything).Return(errors.New("already closed"))
	st := openStore(t)
	a := newAgent(t, st, Options{Messenger: mm})
	a.Shutdown(ctx)
	mm.AssertExpectations(t)

	st.failPut = errors.New("gone")
	a.Shutdown(ctx) // logs only
}

func TestConcurrentOperations(t *testing.T) {
	ctx := context.Background()
	a := newAgent(t, openStore(t), Options{Completer: completion.Stub{}})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			a.ProcessMessage(ctx, fmt.Sprintf("m%d", i), "#dev", "carol", models.RequestStatusUpdate)
		}(i)
		go func() {
			defer wg.Done()
			_ = a.Health()
		}()
	}
	wg.Wait()
	assert.Len(t, a.State().Context, 16)
}

func ptr(s string) *string { return &s }
