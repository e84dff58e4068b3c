package completion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ankittk/devcrew/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStub_Name(t *testing.T) {
	assert.Equal(t, "stub", Stub{}.Name())
}

func TestStub_echoesLastLine(t *testing.T) {
	out, err := Stub{}.Complete(context.Background(), Request{Prompt: "Context:\nnone\n\nIncoming Message: hi there\n\n"})
	require.NoError(t, err)
	assert.Equal(t, "stub: Incoming Message: hi there", out)
}

func TestStub_fixedReply(t *testing.T) {
	out, err := Stub{Reply: "done"}.Complete(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestStub_emptyPrompt(t *testing.T) {
	out, err := Stub{}.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "stub: ok", out)
}

func TestStub_contextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Stub{}.Complete(ctx, Request{Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestDefaults(t *testing.T) {
	var r Request
	assert.Equal(t, DefaultMaxTokens, r.maxTokens())
	assert.InDelta(t, DefaultTemperature, r.temperature(), 1e-9)
	low := 0.2
	r = Request{MaxTokens: 42, Temperature: &low}
	assert.Equal(t, 42, r.maxTokens())
	assert.InDelta(t, 0.2, r.temperature(), 1e-9)

	// an explicit zero is a deterministic request, not an unset one
	zero := 0.0
	r = Request{Temperature: &zero}
	assert.Zero(t, r.temperature())
}

func TestSubprocess_emptyCommand(t *testing.T) {
	_, err := Subprocess{}.Complete(context.Background(), Request{})
	require.Error(t, err)
}

func TestSubprocess_echoScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "model.sh")
	content := "#!/bin/sh\nread line\necho \"  reply for $line\"\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))

	out, err := Subprocess{Command: script}.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Contains(t, out, "reply for")
	assert.Contains(t, out, `"prompt":"hello"`)
	assert.Contains(t, out, `"max_tokens":500`)
}

func TestSubprocess_failure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fail.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho boom >&2\nexit 3\n"), 0o755))
	_, err := Subprocess{Command: script}.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
}

func TestSubprocess_noOutput(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "quiet.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat >/dev/null\n"), 0o755))
	_, err := Subprocess{Command: script}.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	c, err := New(ctx, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", c.Name())

	for _, p := range []string{"openai", "anthropic", "gemini"} {
		_, err := New(ctx, Options{Provider: p}, nil)
		assert.True(t, errors.Is(err, errs.ErrIntegrationUnavailable), p)
	}

	c, err = New(ctx, Options{Provider: "openai", APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = New(ctx, Options{Provider: "Anthropic", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	_, err = New(ctx, Options{Provider: "grpc"}, nil)
	require.Error(t, err)
	c, err = New(ctx, Options{Provider: "grpc", Address: "x:1"}, func(string) (Completer, error) { return Stub{Reply: "r"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "stub", c.Name())

	c, err = New(ctx, Options{Provider: "subprocess", Command: "/bin/true"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "subprocess", c.Name())

	_, err = New(ctx, Options{Provider: "nope"}, nil)
	require.Error(t, err)
}
