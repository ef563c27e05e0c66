// Package providertest provides a scripted provider.Provider for tests.
package providertest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/provider"
)

// Step is one scripted reply.
type Step struct {
	Output    string
	SessionID string
	Err       error

	// Delay postpones the reply. The fake returns ctx.Err() if the context
	// ends first, unless IgnoreCancel is set, in which case it replies late
	// regardless.
	Delay        time.Duration
	IgnoreCancel bool

	// Hook runs before the reply, e.g. to touch files in the workspace.
	Hook func(provider.Request)
}

// Fake replays scripted steps per gate. The last step of a script repeats
// once the earlier ones are consumed. Gates without a script get Default.
type Fake struct {
	mu      sync.Mutex
	scripts map[string][]Step
	calls   []provider.Request

	Default Step
}

// New creates an empty Fake whose default reply is a zero score.
func New() *Fake {
	return &Fake{
		scripts: map[string][]Step{},
		Default: Step{Output: Result(0)},
	}
}

// Script queues replies for gate.
func (f *Fake) Script(gate string, steps ...Step) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[gate] = append(f.scripts[gate], steps...)
	return f
}

// Evaluate implements provider.Provider.
func (f *Fake) Evaluate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	step := f.next(req)

	if step.Hook != nil {
		step.Hook(req)
	}

	if step.Delay > 0 {
		if step.IgnoreCancel {
			time.Sleep(step.Delay)
		} else {
			select {
			case <-time.After(step.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if step.Err != nil {
		return nil, step.Err
	}
	return &provider.Response{Output: step.Output, SessionID: step.SessionID}, nil
}

func (f *Fake) next(req provider.Request) Step {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, req)

	queue, ok := f.scripts[req.Gate]
	if !ok || len(queue) == 0 {
		return f.Default
	}
	step := queue[0]
	if len(queue) > 1 {
		f.scripts[req.Gate] = queue[1:]
	}
	return step
}

// Calls returns every request seen so far.
func (f *Fake) Calls() []provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]provider.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor counts the requests made for gate.
func (f *Fake) CallsFor(gate string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Gate == gate {
			n++
		}
	}
	return n
}

// Result renders a gate result object the way a provider would report it.
func Result(score float64, findings ...models.Finding) string {
	if findings == nil {
		findings = []models.Finding{}
	}
	data, _ := json.Marshal(map[string]any{
		"score":    score,
		"findings": findings,
	})
	return string(data)
}
