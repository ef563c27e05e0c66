package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// CmdRunner runs a gh subcommand and returns its trimmed output.
type CmdRunner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecRunner runs the gh binary.
type ExecRunner struct {
	Path string // defaults to "gh"
}

// Run implements CmdRunner.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	path := r.Path
	if path == "" {
		path = "gh"
	}
	out, err := exec.CommandContext(ctx, path, args...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		return trimmed, fmt.Errorf("gh %s: %s: %w", args[0], trimmed, err)
	}
	return trimmed, nil
}

// GH is a Client backed by the gh CLI. Arguments go straight to argv; no
// shell is involved.
type GH struct {
	cmd  CmdRunner
	repo string
}

// NewGH creates a gh-backed client. An empty repo lets gh infer it from the
// working directory.
func NewGH(cmd CmdRunner, repo string) *GH {
	return &GH{cmd: cmd, repo: repo}
}

func (g *GH) run(ctx context.Context, args ...string) (string, error) {
	if g.repo != "" {
		args = append(args, "--repo", g.repo)
	}
	return g.cmd.Run(ctx, args...)
}

type ghIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"`
	URL    string `json:"url"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

// ViewIssue implements Client.
func (g *GH) ViewIssue(ctx context.Context, id string) (*Issue, error) {
	if err := ValidateIssueID(id); err != nil {
		return nil, err
	}
	out, err := g.run(ctx, "issue", "view", id, "--json", "number,title,body,state,labels,url")
	if err != nil {
		return nil, fmt.Errorf("view issue %s: %w", id, err)
	}

	var raw ghIssue
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("parse issue JSON: %w", err)
	}
	issue := &Issue{Number: raw.Number, Title: raw.Title, Body: raw.Body, State: raw.State, URL: raw.URL}
	for _, l := range raw.Labels {
		issue.Labels = append(issue.Labels, l.Name)
	}
	return issue, nil
}

// CreateIssue implements Client.
func (g *GH) CreateIssue(ctx context.Context, req IssueRequest) (string, error) {
	args := []string{"issue", "create", "--title", req.Title, "--body", withParent(req.Body, req.ParentRef)}
	if len(req.Labels) > 0 {
		args = append(args, "--label", strings.Join(req.Labels, ","))
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}
	id, ok := ExtractID(out)
	if !ok {
		return "", fmt.Errorf("create issue: no issue number in output %q", out)
	}
	return id, nil
}

// CommentIssue implements Client. It returns the comment URL gh prints.
func (g *GH) CommentIssue(ctx context.Context, id, body string) (string, error) {
	if err := ValidateIssueID(id); err != nil {
		return "", err
	}
	out, err := g.run(ctx, "issue", "comment", id, "--body", body)
	if err != nil {
		return "", fmt.Errorf("comment on issue %s: %w", id, err)
	}
	return out, nil
}

// CreatePullRequest implements Client.
func (g *GH) CreatePullRequest(ctx context.Context, req PRRequest) (string, error) {
	args := []string{"pr", "create", "--title", req.Title, "--body", req.Body, "--head", req.SourceBranch}
	if req.TargetBranch != "" {
		args = append(args, "--base", req.TargetBranch)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("create PR: %w", err)
	}
	id, ok := ExtractID(out)
	if !ok {
		return "", fmt.Errorf("create PR: no PR number in output %q", out)
	}
	return id, nil
}
