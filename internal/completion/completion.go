// Package completion turns a system prompt plus a user prompt into text.
// Backends: OpenAI, Anthropic, Gemini, a remote gRPC server, a local
// subprocess and a deterministic stub for tests and offline runs.
package completion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ankittk/devcrew/internal/errs"
)

// Defaults applied when a Request leaves the field zero or unset.
const (
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7
)

// Request is one completion call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64 // nil uses DefaultTemperature; 0 is a valid setting
}

func (r Request) maxTokens() int {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

func (r Request) temperature() float64 {
	if r.Temperature == nil {
		return DefaultTemperature
	}
	return *r.Temperature
}

// Completer produces text for a prompt. Implementations must be safe for concurrent use.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Options selects and configures a backend.
type Options struct {
	Provider string // openai, anthropic, gemini, grpc, subprocess, stub
	APIKey   string // falls back to the provider's env var
	BaseURL  string // openai-compatible endpoints
	Address  string // grpc server address
	Command  string // subprocess command
	Args     []string
}

// Dialer builds the grpc backend. It is injected so this package does not
// import its own transport subpackage.
type Dialer func(addr string) (Completer, error)

// New builds the backend named by opts.Provider. dial may be nil unless Provider is grpc.
func New(ctx context.Context, opts Options, dial Dialer) (Completer, error) {
	switch strings.ToLower(opts.Provider) {
	case "", "stub":
		return Stub{}, nil
	case "openai":
		key := firstNonEmpty(opts.APIKey, os.Getenv("OPENAI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", errs.ErrIntegrationUnavailable)
		}
		return NewOpenAI(key, opts.BaseURL), nil
	case "anthropic":
		key := firstNonEmpty(opts.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not set", errs.ErrIntegrationUnavailable)
		}
		return NewAnthropic(key), nil
	case "gemini":
		key := firstNonEmpty(opts.APIKey, os.Getenv("GEMINI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", errs.ErrIntegrationUnavailable)
		}
		return NewGemini(ctx, key)
	case "grpc":
		if dial == nil || opts.Address == "" {
			return nil, errors.New("grpc completion needs an address")
		}
		return dial(opts.Address)
	case "subprocess":
		if opts.Command == "" {
			return nil, errors.New("subprocess completion needs a command")
		}
		return Subprocess{Command: opts.Command, Args: opts.Args}, nil
	}
	return nil, fmt.Errorf("unknown completion provider %q", opts.Provider)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
