package cli

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/ankittk/devcrew/internal/config"
)

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"start", "stop", "status", "agent", "task", "collab", "stats", "config", "doctor", "apikey", "nuke", "version", "daemon"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
}

func TestNewRootCmd_hasHomeFlag(t *testing.T) {
	root := NewRootCmd("")
	for _, name := range []string{"home", "url", "api-key"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag", name)
		}
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestApikeyGenerate(t *testing.T) {
	out, err := run(t, "apikey", "generate")
	if err != nil {
		t.Fatalf("apikey generate: %v", err)
	}
	hexKey := regexp.MustCompile(`(?m)^  ([a-f0-9]{64})$`)
	if !hexKey.MatchString(out) {
		t.Errorf("output should contain a 64-char hex key on its own line; got:\n%s", out)
	}
	if !strings.Contains(out, "DEVCREW_API_KEY") {
		t.Errorf("output should mention DEVCREW_API_KEY")
	}
	if !strings.Contains(out, "X-API-Key") {
		t.Errorf("output should mention X-API-Key")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	home := t.TempDir()
	if _, err := run(t, "--home", home, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(config.Path(home)); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "agents", "alice")); err != nil {
		t.Errorf("agent dir not created: %v", err)
	}
	if _, err := run(t, "--home", home, "config", "init"); err == nil {
		t.Error("second init without --force: expected error")
	}

	out, err := run(t, "--home", home, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "alice") || !strings.Contains(out, "bob") {
		t.Errorf("validate output: %s", out)
	}

	if err := os.WriteFile(config.Path(home), []byte("agents:\n  - name: zed\n    role: wizard\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "--home", home, "config", "validate"); err == nil {
		t.Error("validate bad role: expected error")
	}
}

func TestDoctorProblems(t *testing.T) {
	sys := &config.System{
		Messaging:  config.Messaging{Platform: "slack"},
		Completion: config.Completion{Provider: "openai"},
		Database:   config.Database{Driver: "postgres"},
		GitHub:     config.GitHub{DefaultRepo: "acme/api"},
	}
	got := doctorProblems(sys, config.Secrets{})
	if len(got) != 5 {
		t.Fatalf("problems = %v", got)
	}
	full := config.Secrets{SlackBotToken: "x", SlackAppToken: "y", OpenAIKey: "k", DatabaseURL: "postgres://", GitHubToken: "g"}
	if got := doctorProblems(sys, full); len(got) != 0 {
		t.Fatalf("problems with all secrets = %v", got)
	}
	if got := doctorProblems(&config.System{}, config.Secrets{}); len(got) != 0 {
		t.Fatalf("default config problems = %v", got)
	}
}

func TestAPIClient_daemonDown(t *testing.T) {
	t.Setenv("DEVCREW_URL", "")
	_, err := run(t, "--home", t.TempDir(), "task", "list")
	if !errors.Is(err, errDaemonDown) {
		t.Fatalf("task list without daemon: got %v", err)
	}
}

func TestTaskList_viaURL(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotKey = r.URL.Path, r.URL.RawQuery, r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"task_id":"t-1","title":"Build login","assigned_agent":"alice","status":"assigned","priority":"high"}]`))
	}))
	defer srv.Close()

	out, err := run(t, "--home", t.TempDir(), "--url", srv.URL, "--api-key", "k1", "task", "list", "--agent", "alice", "--limit", "3")
	if err != nil {
		t.Fatalf("task list: %v", err)
	}
	if gotPath != "/tasks" || gotQuery != "agent=alice&limit=3" || gotKey != "k1" {
		t.Errorf("request = %s?%s key=%q", gotPath, gotQuery, gotKey)
	}
	if !strings.Contains(out, "t-1") || !strings.Contains(out, "Build login") {
		t.Errorf("output: %s", out)
	}
}

func TestStop_notRunning(t *testing.T) {
	out, err := run(t, "--home", t.TempDir(), "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !strings.Contains(out, "not running") {
		t.Errorf("stop output: %q", out)
	}
}

func TestStop_singleAgentViaURL(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Method + " " + r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	out, err := run(t, "--home", t.TempDir(), "--url", srv.URL, "stop", "--agent", "bob")
	if err != nil {
		t.Fatalf("stop --agent: %v", err)
	}
	if got != "POST /agents/bob/stop" || !strings.Contains(out, "bob stopped") {
		t.Errorf("request %q, output %q", got, out)
	}
}

func TestUpsertEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FOO=1\nexport DEVCREW_API_KEY=old\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := upsertEnv(path, apiKeyEnv, "new"); err != nil {
		t.Fatalf("upsertEnv: %v", err)
	}
	if err := upsertEnv(path, "BAR", "2"); err != nil {
		t.Fatalf("upsertEnv: %v", err)
	}
	b, _ := os.ReadFile(path)
	if got, want := string(b), "FOO=1\nDEVCREW_API_KEY=new\nBAR=2\n"; got != want {
		t.Fatalf("env file = %q, want %q", got, want)
	}
}
