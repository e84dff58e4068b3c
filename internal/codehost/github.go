package codehost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ankittk/devcrew/internal/errs"
	"github.com/google/go-github/v68/github"
)

// GitHub implements Client on the GitHub REST API.
type GitHub struct {
	gh *github.Client
}

// GitHubOption configures NewGitHub.
type GitHubOption func(*github.Client) error

// WithBaseURL points the client at another API root (GitHub Enterprise, tests).
func WithBaseURL(raw string) GitHubOption {
	return func(c *github.Client) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return err
		}
		c.BaseURL = u
		return nil
	}
}

// NewGitHub builds a GitHub client authenticated with token.
func NewGitHub(token string, opts ...GitHubOption) (*GitHub, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: GITHUB_TOKEN not set", errs.ErrIntegrationUnavailable)
	}
	c := github.NewClient(nil).WithAuthToken(token)
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return &GitHub{gh: c}, nil
}

func (*GitHub) Name() string { return "github" }

func (g *GitHub) CreateBranch(ctx context.Context, repo, base, branch string) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	ref, _, err := g.gh.Git.GetRef(ctx, owner, name, "heads/"+base)
	if err != nil {
		return wrap("get base ref", err)
	}
	_, _, err = g.gh.Git.CreateRef(ctx, owner, name, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + branch),
		Object: &github.GitObject{SHA: ref.GetObject().SHA},
	})
	return wrap("create branch", err)
}

func (g *GitHub) GetFile(ctx context.Context, repo, path, ref string) (string, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return "", err
	}
	file, _, err := g.getContents(ctx, owner, name, path, ref)
	if err != nil {
		return "", err
	}
	return file.GetContent()
}

func (g *GitHub) getContents(ctx context.Context, owner, name, path, ref string) (*github.RepositoryContent, *github.Response, error) {
	file, _, resp, err := g.gh.Repositories.GetContents(ctx, owner, name, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, resp, wrap("get file", err)
	}
	if file == nil {
		return nil, resp, fmt.Errorf("%w: %s is a directory", errs.ErrInvalidInput, path)
	}
	return file, resp, nil
}

func (g *GitHub) CreateFile(ctx context.Context, f FileChange) (string, error) {
	owner, name, err := SplitRepo(f.Repo)
	if err != nil {
		return "", err
	}
	res, _, err := g.gh.Repositories.CreateFile(ctx, owner, name, f.Path, fileOptions(f))
	if err != nil {
		return "", wrap("create file", err)
	}
	return res.Commit.GetSHA(), nil
}

func (g *GitHub) UpdateFile(ctx context.Context, f FileChange) (string, error) {
	owner, name, err := SplitRepo(f.Repo)
	if err != nil {
		return "", err
	}
	if f.SHA, err = g.blobSHA(ctx, owner, name, f); err != nil {
		return "", err
	}
	res, _, err := g.gh.Repositories.UpdateFile(ctx, owner, name, f.Path, fileOptions(f))
	if err != nil {
		return "", wrap("update file", err)
	}
	return res.Commit.GetSHA(), nil
}

func (g *GitHub) DeleteFile(ctx context.Context, f FileChange) (string, error) {
	owner, name, err := SplitRepo(f.Repo)
	if err != nil {
		return "", err
	}
	if f.SHA, err = g.blobSHA(ctx, owner, name, f); err != nil {
		return "", err
	}
	opts := fileOptions(f)
	opts.Content = nil
	res, _, err := g.gh.Repositories.DeleteFile(ctx, owner, name, f.Path, opts)
	if err != nil {
		return "", wrap("delete file", err)
	}
	return res.Commit.GetSHA(), nil
}

func (g *GitHub) blobSHA(ctx context.Context, owner, name string, f FileChange) (string, error) {
	if f.SHA != "" {
		return f.SHA, nil
	}
	file, _, err := g.getContents(ctx, owner, name, f.Path, f.Branch)
	if err != nil {
		return "", err
	}
	return file.GetSHA(), nil
}

func fileOptions(f FileChange) *github.RepositoryContentFileOptions {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(f.Message),
		Content: []byte(f.Content),
	}
	if f.Branch != "" {
		opts.Branch = github.Ptr(f.Branch)
	}
	if f.SHA != "" {
		opts.SHA = github.Ptr(f.SHA)
	}
	return opts
}

func (g *GitHub) CreatePullRequest(ctx context.Context, pr PullRequest) (int, string, error) {
	owner, name, err := SplitRepo(pr.Repo)
	if err != nil {
		return 0, "", err
	}
	created, _, err := g.gh.PullRequests.Create(ctx, owner, name, &github.NewPullRequest{
		Title: github.Ptr(pr.Title),
		Head:  github.Ptr(pr.Head),
		Base:  github.Ptr(pr.Base),
		Body:  github.Ptr(pr.Body),
		Draft: github.Ptr(pr.Draft),
	})
	if err != nil {
		return 0, "", wrap("create pull request", err)
	}
	return created.GetNumber(), created.GetHTMLURL(), nil
}

func (g *GitHub) ReviewPullRequest(ctx context.Context, repo string, number int, event, body string) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	switch event {
	case ReviewApprove, ReviewRequestChanges, ReviewComment:
	default:
		return fmt.Errorf("%w: review event %q", errs.ErrInvalidInput, event)
	}
	_, _, err = g.gh.PullRequests.CreateReview(ctx, owner, name, number, &github.PullRequestReviewRequest{
		Body:  github.Ptr(body),
		Event: github.Ptr(event),
	})
	return wrap("review pull request", err)
}

func (g *GitHub) MergePullRequest(ctx context.Context, repo string, number int, method string) error {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return err
	}
	if method == "" {
		method = "merge"
	}
	res, _, err := g.gh.PullRequests.Merge(ctx, owner, name, number, "", &github.PullRequestOptions{MergeMethod: method})
	if err != nil {
		return wrap("merge pull request", err)
	}
	if !res.GetMerged() {
		return fmt.Errorf("merge pull request #%d: %s", number, res.GetMessage())
	}
	return nil
}

func (g *GitHub) CreateIssue(ctx context.Context, repo, title, body string, labels []string) (int, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return 0, err
	}
	req := &github.IssueRequest{Title: github.Ptr(title), Body: github.Ptr(body)}
	if len(labels) > 0 {
		req.Labels = &labels
	}
	issue, _, err := g.gh.Issues.Create(ctx, owner, name, req)
	if err != nil {
		return 0, wrap("create issue", err)
	}
	return issue.GetNumber(), nil
}

// wrap maps a 404 to errs.ErrNotFound and keeps the API error in the chain.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *github.ErrorResponse
	if errors.As(err, &gerr) && gerr.Response != nil && gerr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %w", op, errs.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
