package daemon

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ankittk/devcrew/internal/config"
	"github.com/ankittk/devcrew/internal/errs"
	"github.com/ankittk/devcrew/pkg/models"
)

const testConfig = `
name: devcrew
version: "0.9.0"
completion:
  provider: stub
logging:
  level: warn
restart_delay: 0s
agents:
  - name: alice
    role: backend
  - name: bob
    role: qa
  - name: carol
    role: devops
    enabled: false
`

func writeHome(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(config.Path(home), []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	return home
}

func TestStartForeground_emptyHome(t *testing.T) {
	ctx := context.Background()
	err := StartForeground(ctx, StartOptions{Home: ""})
	if err == nil {
		t.Fatal("StartForeground empty home: expected error")
	}
}

func TestBoot_missingConfig(t *testing.T) {
	_, err := Boot(context.Background(), StartOptions{Home: t.TempDir()})
	if err == nil {
		t.Fatal("Boot without config: expected error")
	}
}

func TestBoot_startAllAndClose(t *testing.T) {
	home := writeHome(t)
	ctx := context.Background()
	svc, err := Boot(ctx, StartOptions{Home: home, Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if svc.App.Server.Addr != "127.0.0.1:0" {
		t.Errorf("addr = %q", svc.App.Server.Addr)
	}
	if err := svc.StartAgents(ctx, ""); err != nil {
		t.Fatalf("StartAgents: %v", err)
	}
	got := svc.Runner.RunningNames()
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("running = %v", got)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := len(svc.Runner.RunningNames()); n != 0 {
		t.Errorf("running after Close = %d", n)
	}
	// the sqlite file lives under the home
	if _, err := os.Stat(filepath.Join(home, "protected", "db.sqlite")); err != nil {
		t.Errorf("db file: %v", err)
	}
}

func TestBoot_singleAgentMode(t *testing.T) {
	home := writeHome(t)
	ctx := context.Background()
	svc, err := Boot(ctx, StartOptions{Home: home, Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	defer func() { _ = svc.Close() }()
	if err := svc.StartAgents(ctx, "bob"); err != nil {
		t.Fatalf("StartAgents: %v", err)
	}
	if got := svc.Runner.RunningNames(); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("running = %v", got)
	}
	if err := svc.StartAgents(ctx, "zed"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("unknown agent: got %v", err)
	}
}

func TestBoot_defaultPort(t *testing.T) {
	home := writeHome(t)
	svc, err := Boot(context.Background(), StartOptions{Home: home})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	defer func() { _ = svc.Close() }()
	if want := "0.0.0.0:" + strconv.Itoa(DefaultPort); svc.App.Server.Addr != want {
		t.Errorf("addr = %q, want %q", svc.App.Server.Addr, want)
	}
}

func TestOpenStore_drivers(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	ctx := context.Background()

	if _, err := OpenStore(ctx, config.Database{Driver: "oracle"}, t.TempDir()); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("unknown driver: got %v", err)
	}
	if _, err := OpenStore(ctx, config.Database{Driver: "redis"}, t.TempDir()); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("redis without dsn: got %v", err)
	}
	if _, err := OpenStore(ctx, config.Database{Driver: "postgres"}, t.TempDir()); err == nil {
		t.Error("postgres without dsn: expected error")
	}

	st, err := OpenStore(ctx, config.Database{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "crew.db")}, "")
	if err != nil {
		t.Fatalf("sqlite path: %v", err)
	}
	defer func() { _ = st.Close() }()
	s, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.Tasks != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestStatus_pidFile(t *testing.T) {
	home := t.TempDir()
	ctx := context.Background()

	st, err := Status(ctx, home)
	if err != nil || st.Running {
		t.Fatalf("no pid file: %+v %v", st, err)
	}

	files := runFilesFor(home)
	if err := files.ensureDir(); err != nil {
		t.Fatal(err)
	}
	if err := files.record(os.Getpid(), "0.0.0.0:8000"); err != nil {
		t.Fatal(err)
	}
	st, err = Status(ctx, home)
	if err != nil || !st.Running || st.PID != os.Getpid() || st.Addr != "0.0.0.0:8000" {
		t.Fatalf("status = %+v %v", st, err)
	}

	if err := os.WriteFile(files.pid, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if st, _ := Status(ctx, home); st.Running {
		t.Fatal("garbage pid should not be running")
	}
}

func TestStop_notRunning(t *testing.T) {
	stopped, err := Stop(context.Background(), t.TempDir())
	if err != nil || stopped {
		t.Fatalf("Stop: %v %v", stopped, err)
	}
}

func TestClientURL(t *testing.T) {
	cases := map[string]string{
		"0.0.0.0:8000":   "http://127.0.0.1:8000",
		"127.0.0.1:9000": "http://127.0.0.1:9000",
		":7000":          "http://127.0.0.1:7000",
		"example:80":     "http://example:80",
	}
	for in, want := range cases {
		if got := ClientURL(in); got != want {
			t.Errorf("ClientURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStartForeground_servesUntilCanceled(t *testing.T) {
	home := writeHome(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- StartForeground(ctx, StartOptions{Home: home, Addr: "127.0.0.1:0", Agent: "alice"})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		st, _ := Status(context.Background(), home)
		if st.Running {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("daemon never wrote its pid file")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// a second instance cannot take the lock
	if err := StartForeground(context.Background(), StartOptions{Home: home, Addr: "127.0.0.1:0"}); err == nil {
		t.Error("second StartForeground: expected lock error")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) && err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("StartForeground: %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("StartForeground did not return")
	}
	if _, err := os.Stat(runFilesFor(home).pid); !os.IsNotExist(err) {
		t.Errorf("pid file should be removed, stat err = %v", err)
	}
}

func TestGauges(t *testing.T) {
	home := writeHome(t)
	ctx := context.Background()
	svc, err := Boot(ctx, StartOptions{Home: home, Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	defer func() { _ = svc.Close() }()
	if err := svc.StartAgents(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	g := gauges(svc.Runner)
	if n := g.RunningAgents(); n != 1 {
		t.Errorf("running = %d", n)
	}
	by := g.TasksByStatus()
	for _, s := range []models.TaskStatus{models.TaskAssigned, models.TaskWorking, models.TaskCompleted, models.TaskFailed} {
		if v, ok := by[string(s)]; !ok || v != 0 {
			t.Errorf("tasks[%s] = %d, %v", s, v, ok)
		}
	}
}
