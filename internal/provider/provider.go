// Package provider resolves and invokes the capability providers that
// evaluate gates.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/harrison/ralph/internal/budget"
)

// Provider evaluates one prompt on behalf of a gate.
// Implementations must be safe for concurrent use.
type Provider interface {
	Evaluate(ctx context.Context, req Request) (*Response, error)
}

// Request holds per-call configuration. Create a new Request for each call.
type Request struct {
	// Gate is the gate name the call is made for ("implement" for the
	// implementation phase).
	Gate string

	// Prompt is the evaluation prompt (required).
	Prompt string

	// Tools is the toolset the provider may use.
	Tools []string

	// Exec carries the per-call environment overrides.
	Exec ExecutionContext

	// SessionID resumes an existing provider session when set.
	SessionID string

	// AllowEdits lets the provider modify the workspace.
	AllowEdits bool

	// DisallowedTools are tool patterns the provider must refuse, such as
	// "Bash(git push --force:*)".
	DisallowedTools []string
}

// Response is the unwrapped provider output.
type Response struct {
	// Output is the provider's final text, typically containing a JSON object.
	Output string

	// SessionID identifies the provider session for later resumption.
	SessionID string
}

// ErrEmptyPrompt is returned for requests without a prompt.
var ErrEmptyPrompt = errors.New("prompt is required")

// LimitError reports that the provider refused the call because of its own
// usage limit.
type LimitError struct {
	Limit *budget.ProviderLimit
}

func (e *LimitError) Error() string {
	if e.Limit != nil && e.Limit.RetryAfter > 0 {
		return fmt.Sprintf("provider usage limit reached (retry in %s)", e.Limit.RetryAfter)
	}
	return "provider usage limit reached"
}

// LimitOf returns the provider limit carried by a LimitError in err's
// chain. ok is false when err is not a usage-limit refusal.
func LimitOf(err error) (limit *budget.ProviderLimit, ok bool) {
	var le *LimitError
	if !errors.As(err, &le) {
		return nil, false
	}
	if le.Limit == nil {
		return &budget.ProviderLimit{}, true
	}
	return le.Limit, true
}
