package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ankittk/devcrew/internal/cli"
	"github.com/ankittk/devcrew/internal/errs"
)

const (
	exitError  = 1
	exitConfig = 2
)

// Run executes the CLI and maps the error to an exit code. Configuration
// problems exit 2 so scripts can tell a bad config.yaml from a failed call.
func Run(ctx context.Context, args []string, stderr io.Writer) int {
	root := cli.NewRootCmd(Version)
	root.SetArgs(args)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		if errors.Is(err, errs.ErrConfiguration) {
			return exitConfig
		}
		return exitError
	}
	return 0
}
