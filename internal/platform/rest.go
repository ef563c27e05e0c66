package platform

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// REST is a Client backed by the GitHub REST API.
type REST struct {
	gh    *github.Client
	owner string
	repo  string
}

// RESTOption configures a REST client.
type RESTOption func(*REST) error

// WithBaseURL points the client at a different API root, e.g. a GitHub
// Enterprise host or a test server.
func WithBaseURL(raw string) RESTOption {
	return func(r *REST) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse base URL: %w", err)
		}
		r.gh.BaseURL = u
		return nil
	}
}

// NewREST creates a REST client authenticated with a static token for
// repo ("owner/name").
func NewREST(ctx context.Context, token, repo string, opts ...RESTOption) (*REST, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token not set")
	}
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("repository %q must be owner/name", repo)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	r := &REST{
		gh:    github.NewClient(oauth2.NewClient(ctx, ts)),
		owner: owner,
		repo:  name,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func issueNumber(id string) (int, error) {
	if err := ValidateIssueID(id); err != nil {
		return 0, err
	}
	return strconv.Atoi(id)
}

// ViewIssue implements Client.
func (r *REST) ViewIssue(ctx context.Context, id string) (*Issue, error) {
	n, err := issueNumber(id)
	if err != nil {
		return nil, err
	}
	gi, _, err := r.gh.Issues.Get(ctx, r.owner, r.repo, n)
	if err != nil {
		return nil, fmt.Errorf("view issue %s: %w", id, err)
	}

	issue := &Issue{
		Number: gi.GetNumber(),
		Title:  gi.GetTitle(),
		Body:   gi.GetBody(),
		State:  gi.GetState(),
		URL:    gi.GetHTMLURL(),
	}
	for _, l := range gi.Labels {
		issue.Labels = append(issue.Labels, l.GetName())
	}
	return issue, nil
}

// CreateIssue implements Client.
func (r *REST) CreateIssue(ctx context.Context, req IssueRequest) (string, error) {
	body := withParent(req.Body, req.ParentRef)
	ir := &github.IssueRequest{Title: &req.Title, Body: &body}
	if len(req.Labels) > 0 {
		labels := append([]string(nil), req.Labels...)
		ir.Labels = &labels
	}
	gi, _, err := r.gh.Issues.Create(ctx, r.owner, r.repo, ir)
	if err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}
	return strconv.Itoa(gi.GetNumber()), nil
}

// CommentIssue implements Client. It returns the comment URL.
func (r *REST) CommentIssue(ctx context.Context, id, body string) (string, error) {
	n, err := issueNumber(id)
	if err != nil {
		return "", err
	}
	c, _, err := r.gh.Issues.CreateComment(ctx, r.owner, r.repo, n, &github.IssueComment{Body: &body})
	if err != nil {
		return "", fmt.Errorf("comment on issue %s: %w", id, err)
	}
	return c.GetHTMLURL(), nil
}

// CreatePullRequest implements Client.
func (r *REST) CreatePullRequest(ctx context.Context, req PRRequest) (string, error) {
	pr, _, err := r.gh.PullRequests.Create(ctx, r.owner, r.repo, &github.NewPullRequest{
		Title: github.String(req.Title),
		Head:  github.String(req.SourceBranch),
		Base:  github.String(req.TargetBranch),
		Body:  github.String(req.Body),
	})
	if err != nil {
		return "", fmt.Errorf("create PR: %w", err)
	}
	return strconv.Itoa(pr.GetNumber()), nil
}
