package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls  [][]string
	output string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	return f.output, f.err
}

func (f *fakeRunner) last() []string {
	return f.calls[len(f.calls)-1]
}

func TestGH_ViewIssue(t *testing.T) {
	r := &fakeRunner{output: `{"number":42,"title":"Add login","body":"## Acceptance Criteria\n- [ ] works","state":"OPEN","url":"https://github.com/o/r/issues/42","labels":[{"name":"feature"}]}`}
	gh := NewGH(r, "o/r")

	issue, err := gh.ViewIssue(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 42, issue.Number)
	assert.Equal(t, "Add login", issue.Title)
	assert.Equal(t, []string{"feature"}, issue.Labels)
	assert.Equal(t, []string{"issue", "view", "42", "--json", "number,title,body,state,labels,url", "--repo", "o/r"}, r.last())
}

func TestGH_ViewIssueRejectsBadID(t *testing.T) {
	r := &fakeRunner{}
	_, err := NewGH(r, "").ViewIssue(context.Background(), "4;2")
	require.Error(t, err)
	assert.Empty(t, r.calls)
}

func TestGH_ViewIssueBadJSON(t *testing.T) {
	r := &fakeRunner{output: "not json"}
	_, err := NewGH(r, "").ViewIssue(context.Background(), "42")
	assert.ErrorContains(t, err, "parse issue JSON")
}

func TestGH_CreateIssue(t *testing.T) {
	r := &fakeRunner{output: "https://github.com/o/r/issues/77"}
	gh := NewGH(r, "")

	id, err := gh.CreateIssue(context.Background(), IssueRequest{
		Title:     "[ARCHITECT] Split module",
		Body:      "details",
		Labels:    []string{"auto-generated", "architect", "high"},
		ParentRef: "42",
	})
	require.NoError(t, err)
	assert.Equal(t, "77", id)
	assert.Equal(t, []string{
		"issue", "create", "--title", "[ARCHITECT] Split module",
		"--body", "details\n*Parent issue: #42*",
		"--label", "auto-generated,architect,high",
	}, r.last())
}

func TestGH_CreateIssueWithoutID(t *testing.T) {
	r := &fakeRunner{output: "done"}
	_, err := NewGH(r, "").CreateIssue(context.Background(), IssueRequest{Title: "x"})
	assert.ErrorContains(t, err, "no issue number")
}

func TestGH_CommentIssue(t *testing.T) {
	r := &fakeRunner{output: "https://github.com/o/r/issues/42#issuecomment-1"}
	out, err := NewGH(r, "").CommentIssue(context.Background(), "42", "## Ralph Run")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/o/r/issues/42#issuecomment-1", out)
	assert.Equal(t, []string{"issue", "comment", "42", "--body", "## Ralph Run"}, r.last())
}

func TestGH_CreatePullRequest(t *testing.T) {
	r := &fakeRunner{output: "https://github.com/o/r/pull/9"}
	id, err := NewGH(r, "").CreatePullRequest(context.Background(), PRRequest{
		Title: "feat: implement #42", Body: "scores", SourceBranch: "feature/42-implement", TargetBranch: "staging",
	})
	require.NoError(t, err)
	assert.Equal(t, "9", id)
	assert.Equal(t, []string{"pr", "create", "--title", "feat: implement #42", "--body", "scores",
		"--head", "feature/42-implement", "--base", "staging"}, r.last())
}

func TestGH_RunnerError(t *testing.T) {
	r := &fakeRunner{err: errors.New("gh: not logged in")}
	_, err := NewGH(r, "").CreatePullRequest(context.Background(), PRRequest{Title: "t"})
	assert.ErrorContains(t, err, "not logged in")
}
