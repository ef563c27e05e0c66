package platform

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Paced spaces calls to an inner Client with a token bucket.
type Paced struct {
	inner   Client
	limiter *rate.Limiter
}

// NewPaced allows rps calls per second with a burst of one. rps <= 0
// disables pacing.
func NewPaced(inner Client, rps float64) *Paced {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Paced{inner: inner, limiter: rate.NewLimiter(limit, 1)}
}

func (p *Paced) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("platform pacing: %w", err)
	}
	return nil
}

// ViewIssue implements Client.
func (p *Paced) ViewIssue(ctx context.Context, id string) (*Issue, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.ViewIssue(ctx, id)
}

// CreateIssue implements Client.
func (p *Paced) CreateIssue(ctx context.Context, req IssueRequest) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.inner.CreateIssue(ctx, req)
}

// CommentIssue implements Client.
func (p *Paced) CommentIssue(ctx context.Context, id, body string) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.inner.CommentIssue(ctx, id, body)
}

// CreatePullRequest implements Client.
func (p *Paced) CreatePullRequest(ctx context.Context, req PRRequest) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.inner.CreatePullRequest(ctx, req)
}
