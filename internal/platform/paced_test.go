package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaced_SpacesCalls(t *testing.T) {
	r := &fakeRunner{output: "https://github.com/o/r/issues/42#issuecomment-1"}
	p := NewPaced(NewGH(r, ""), 20) // one call per 50ms

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.CommentIssue(context.Background(), "42", "x")
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Len(t, r.calls, 3)
}

func TestPaced_Unlimited(t *testing.T) {
	r := &fakeRunner{output: "https://github.com/o/r/pull/1"}
	p := NewPaced(NewGH(r, ""), 0)

	start := time.Now()
	for i := 0; i < 20; i++ {
		_, err := p.CreatePullRequest(context.Background(), PRRequest{Title: "t"})
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPaced_CancelledContext(t *testing.T) {
	r := &fakeRunner{output: `{"number":1}`}
	p := NewPaced(NewGH(r, ""), 0.001)

	_, err := p.ViewIssue(context.Background(), "1") // consumes the burst
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.ViewIssue(ctx, "1")
	assert.Error(t, err)
	assert.Len(t, r.calls, 1)
}
