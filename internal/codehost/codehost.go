// Package codehost is the agents' code-hosting client: files, branches,
// pull requests and issues on a repository named "owner/name".
package codehost

import (
	"context"
	"fmt"
	"strings"

	"github.com/ankittk/devcrew/internal/errs"
)

// FileChange is one file write or delete on a branch.
type FileChange struct {
	Repo    string
	Path    string
	Content string
	Message string
	Branch  string
	// SHA of the blob being replaced; looked up when empty.
	SHA string
}

// PullRequest describes a pull request to open.
type PullRequest struct {
	Repo  string
	Title string
	Body  string
	Head  string
	Base  string
	Draft bool
}

// Review events accepted by ReviewPullRequest.
const (
	ReviewApprove        = "APPROVE"
	ReviewRequestChanges = "REQUEST_CHANGES"
	ReviewComment        = "COMMENT"
)

// Client is the code-host API agents use.
type Client interface {
	Name() string
	CreateBranch(ctx context.Context, repo, base, branch string) error
	GetFile(ctx context.Context, repo, path, ref string) (string, error)
	CreateFile(ctx context.Context, f FileChange) (string, error)
	UpdateFile(ctx context.Context, f FileChange) (string, error)
	DeleteFile(ctx context.Context, f FileChange) (string, error)
	CreatePullRequest(ctx context.Context, pr PullRequest) (number int, url string, err error)
	ReviewPullRequest(ctx context.Context, repo string, number int, event, body string) error
	MergePullRequest(ctx context.Context, repo string, number int, method string) error
	CreateIssue(ctx context.Context, repo, title, body string, labels []string) (int, error)
}

// SplitRepo splits "owner/name".
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(repo), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: repository must be owner/name, got %q", errs.ErrInvalidInput, repo)
	}
	return owner, name, nil
}
