package agent

import (
	"context"
	"fmt"

	"github.com/ankittk/devcrew/internal/codehost"
	"github.com/ankittk/devcrew/internal/errs"
)

// File actions for CommitFiles.
const (
	FileCreate = "create"
	FileUpdate = "update"
	FileDelete = "delete"
)

// FileOp is one file change in a commit.
type FileOp struct {
	Action  string `json:"action"`
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
}

func (a *Agent) codeHost() (codehost.Client, error) {
	if a.opts.CodeHost == nil {
		return nil, fmt.Errorf("%w: %s has no code host", errs.ErrIntegrationUnavailable, a.id.Name)
	}
	return a.opts.CodeHost, nil
}

func (a *Agent) repo(repo string) string { return firstNonEmpty(repo, a.opts.DefaultRepo) }

// recordCodeHost adds the context entry and activity shared by every code-host operation.
func (a *Agent) recordCodeHost(ctx context.Context, kind, action string, details map[string]any) {
	a.mu.Lock()
	a.appendContextLocked(ctx, kind, details)
	a.mu.Unlock()
	if err := a.recordActivity(ctx, "github", action, details); err != nil {
		a.log.Warn("record code host activity failed", "action", action, "err", err)
	}
}

// CommitFiles applies each op to branch as its own commit and returns the commit SHAs.
// It stops at the first failure; earlier commits stay.
func (a *Agent) CommitFiles(ctx context.Context, repo, branch, message string, ops []FileOp) ([]string, error) {
	ch, err := a.codeHost()
	if err != nil {
		return nil, err
	}
	repo = a.repo(repo)
	branch = firstNonEmpty(branch, a.opts.BaseBranch, "main")
	shas := make([]string, 0, len(ops))
	paths := make([]string, 0, len(ops))
	for _, op := range ops {
		f := codehost.FileChange{Repo: repo, Path: op.Path, Content: op.Content, Message: message, Branch: branch}
		var sha string
		switch op.Action {
		case FileCreate, "":
			sha, err = ch.CreateFile(ctx, f)
		case FileUpdate:
			sha, err = ch.UpdateFile(ctx, f)
		case FileDelete:
			sha, err = ch.DeleteFile(ctx, f)
		default:
			err = fmt.Errorf("%w: file action %q", errs.ErrInvalidInput, op.Action)
		}
		if err != nil {
			return shas, fmt.Errorf("%s %s: %w", firstNonEmpty(op.Action, FileCreate), op.Path, err)
		}
		shas = append(shas, sha)
		paths = append(paths, op.Path)
	}
	a.recordCodeHost(ctx, KindGitHubCommit, "commit", map[string]any{
		"repo":    repo,
		"branch":  branch,
		"message": message,
		"files":   paths,
		"summary": fmt.Sprintf("%d file(s) to %s@%s: %s", len(paths), repo, branch, message),
	})
	return shas, nil
}

// CreateBranch creates branch from base on the code host.
func (a *Agent) CreateBranch(ctx context.Context, repo, base, branch string) error {
	ch, err := a.codeHost()
	if err != nil {
		return err
	}
	repo = a.repo(repo)
	base = firstNonEmpty(base, a.opts.BaseBranch, "main")
	if err := ch.CreateBranch(ctx, repo, base, branch); err != nil {
		return err
	}
	if err := a.recordActivity(ctx, "github", "branch_created", map[string]any{"repo": repo, "base": base, "branch": branch}); err != nil {
		a.log.Warn("record branch activity failed", "err", err)
	}
	return nil
}

// OpenPullRequest opens a pull request and returns its number and URL.
func (a *Agent) OpenPullRequest(ctx context.Context, pr codehost.PullRequest) (int, string, error) {
	ch, err := a.codeHost()
	if err != nil {
		return 0, "", err
	}
	pr.Repo = a.repo(pr.Repo)
	pr.Base = firstNonEmpty(pr.Base, a.opts.BaseBranch, "main")
	number, url, err := ch.CreatePullRequest(ctx, pr)
	if err != nil {
		return 0, "", err
	}
	a.recordCodeHost(ctx, KindGitHubPRCreated, "pr_created", map[string]any{
		"repo":    pr.Repo,
		"number":  number,
		"url":     url,
		"title":   pr.Title,
		"summary": fmt.Sprintf("#%d %s", number, pr.Title),
	})
	return number, url, nil
}

// ReviewPullRequest submits a review: APPROVE, REQUEST_CHANGES or COMMENT.
func (a *Agent) ReviewPullRequest(ctx context.Context, repo string, number int, event, body string) error {
	ch, err := a.codeHost()
	if err != nil {
		return err
	}
	repo = a.repo(repo)
	if err := ch.ReviewPullRequest(ctx, repo, number, event, body); err != nil {
		return err
	}
	a.recordCodeHost(ctx, KindGitHubPRReviewed, "pr_reviewed", map[string]any{
		"repo":    repo,
		"number":  number,
		"event":   event,
		"summary": fmt.Sprintf("#%d %s", number, event),
	})
	return nil
}

// MergePullRequest merges a pull request with method merge, squash or rebase.
func (a *Agent) MergePullRequest(ctx context.Context, repo string, number int, method string) error {
	ch, err := a.codeHost()
	if err != nil {
		return err
	}
	repo = a.repo(repo)
	if err := ch.MergePullRequest(ctx, repo, number, method); err != nil {
		return err
	}
	a.recordCodeHost(ctx, KindGitHubPRMerged, "pr_merged", map[string]any{
		"repo":         repo,
		"number":       number,
		"merge_method": firstNonEmpty(method, "merge"),
	})
	return nil
}

// CreateIssue opens an issue and returns its number.
func (a *Agent) CreateIssue(ctx context.Context, repo, title, body string, labels []string) (int, error) {
	ch, err := a.codeHost()
	if err != nil {
		return 0, err
	}
	repo = a.repo(repo)
	number, err := ch.CreateIssue(ctx, repo, title, body, labels)
	if err != nil {
		return 0, err
	}
	a.recordCodeHost(ctx, KindGitHubIssueCreated, "issue_created", map[string]any{
		"repo":    repo,
		"number":  number,
		"title":   title,
		"summary": fmt.Sprintf("#%d %s", number, title),
	})
	return number, nil
}
