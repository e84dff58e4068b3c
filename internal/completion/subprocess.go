package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Subprocess runs a local command per completion: stdin is the JSON Request,
// stdout (trimmed) is the reply. Useful for wrapping a CLI model runner.
type Subprocess struct {
	Command string
	Args    []string
}

func (Subprocess) Name() string { return "subprocess" }

func (s Subprocess) Complete(ctx context.Context, req Request) (string, error) {
	if s.Command == "" {
		return "", errors.New("subprocess command is required")
	}
	body, err := json.Marshal(struct {
		Model       string  `json:"model"`
		System      string  `json:"system"`
		Prompt      string  `json:"prompt"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
	}{req.Model, req.System, req.Prompt, req.maxTokens(), req.temperature()})
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Stdin = bytes.NewReader(append(body, '\n'))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Warn("completion subprocess failed", "command", s.Command, "stderr", strings.TrimSpace(stderr.String()))
		return "", fmt.Errorf("completion subprocess: %w", err)
	}
	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", errors.New("completion subprocess produced no output")
	}
	return out, nil
}
