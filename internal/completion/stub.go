package completion

import (
	"context"
	"strings"
)

// Stub is a deterministic local completer that never calls an external model.
// With Reply unset it echoes the last non-empty prompt line.
type Stub struct {
	Reply string
}

func (Stub) Name() string { return "stub" }

func (s Stub) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Reply != "" {
		return s.Reply, nil
	}
	lines := strings.Split(strings.TrimSpace(req.Prompt), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return "stub: " + l, nil
		}
	}
	return "stub: ok", nil
}
