// Package config resolves the devcrew home directory and loads the YAML system configuration.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ankittk/devcrew/internal/errs"
)

type homeKey struct{}

// WithHome stores the devcrew home path in the context.
func WithHome(ctx context.Context, home string) context.Context {
	return context.WithValue(ctx, homeKey{}, home)
}

// HomeFrom returns the devcrew home path from the context, if set.
func HomeFrom(ctx context.Context) (string, bool) {
	v := ctx.Value(homeKey{})
	s, ok := v.(string)
	return s, ok
}

// MustHomeFrom returns the home path from the context, or panics if not set.
func MustHomeFrom(ctx context.Context) string {
	if h, ok := HomeFrom(ctx); ok && h != "" {
		return h
	}
	panic("devcrew home missing from context")
}

// ResolveHome returns the devcrew home directory: override, then DEVCREW_HOME,
// then ~/.devcrew. A leading "~/" is expanded in either setting.
func ResolveHome(override string) (string, error) {
	for _, p := range []string{override, os.Getenv("DEVCREW_HOME")} {
		if p != "" {
			return expandTilde(p)
		}
	}
	return expandTilde("~/.devcrew")
}

func expandTilde(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return filepath.Clean(p), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: could not determine user home directory: %w", errs.ErrConfiguration, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
