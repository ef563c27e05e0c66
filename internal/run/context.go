// Package run holds the state owned by a single ralph invocation.
package run

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/ralph/internal/budget"
	"github.com/harrison/ralph/internal/metrics"
	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/provider"
)

// Logger receives run progress events. Implementations must be safe for
// concurrent use: gate results arrive from every gate of a tier at once.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogPhase(phase string)
	LogIterationStart(iteration, maxIterations int)
	LogTierStart(tier int, gates []string)
	LogTierComplete(tier int, results []models.GateResult, duration time.Duration)
	LogGateResult(result models.GateResult)
	LogIterationComplete(record models.IterationRecord)
	LogCountdown(remaining, total time.Duration)
	LogSummary(summary models.RunSummary)
}

// AuditSink records one entry per provider call.
type AuditSink interface {
	Record(rec models.AuditRecord) error
}

// Context is everything a run owns. Nothing in it is shared between runs:
// two Contexts in one process have independent limiters, breakers and
// counters.
type Context struct {
	RunID     string
	IssueID   string
	StartTime time.Time

	Limiter   *budget.RateLimiter
	Breaker   *budget.CircuitBreaker
	Providers *provider.Registry
	Metrics   *metrics.Sink
	Logger    Logger
	Audit     AuditSink

	// DisallowedTools is handed to every provider call of the run.
	DisallowedTools []string

	mu            sync.Mutex
	sessionID     string
	createdIssues []string
	providerRetry time.Duration
}

// NewRunID returns an identifier of the form ralph-<unix>-<8 hex chars>.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("ralph-%d-%s", now.Unix(), uuid.NewString()[:8])
}

// SessionID returns the provider session captured during implementation.
func (c *Context) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetSessionID stores the provider session token.
func (c *Context) SetSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// AddCreatedIssue records a sub-issue created during the run.
func (c *Context) AddCreatedIssue(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createdIssues = append(c.createdIssues, id)
}

// CreatedIssues returns a copy of the created sub-issue ids.
func (c *Context) CreatedIssues() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.createdIssues))
	copy(out, c.createdIssues)
	return out
}

// NoteProviderRetry records a provider-requested wait. The longest wait
// reported since the last TakeProviderRetry wins.
func (c *Context) NoteProviderRetry(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > c.providerRetry {
		c.providerRetry = d
	}
}

// TakeProviderRetry returns the pending provider wait and clears it.
func (c *Context) TakeProviderRetry() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.providerRetry
	c.providerRetry = 0
	return d
}

// Snapshot builds the checkpoint for the given progress.
func (c *Context) Snapshot(iteration int, lastScore float64, now time.Time) models.RunState {
	return models.RunState{
		RunID:              c.RunID,
		WorkItemID:         c.IssueID,
		SessionToken:       c.SessionID(),
		Iteration:          iteration,
		LastScore:          lastScore,
		CreatedIssueIDs:    c.CreatedIssues(),
		StartTime:          c.StartTime,
		LastCheckpointTime: now,
	}
}

// Log returns the configured logger or a discarding one.
func (c *Context) Log() Logger {
	if c.Logger == nil {
		return discard{}
	}
	return c.Logger
}

// RecordAudit writes an audit entry when an audit sink is configured.
// Write failures are reported through the logger.
func (c *Context) RecordAudit(rec models.AuditRecord) {
	if c.Audit == nil {
		return
	}
	if rec.RunID == "" {
		rec.RunID = c.RunID
	}
	if err := c.Audit.Record(rec); err != nil {
		c.Log().LogWarn(fmt.Sprintf("audit log write failed: %v", err))
	}
}

type discard struct{}

func (discard) LogDebug(string)                                         {}
func (discard) LogInfo(string)                                          {}
func (discard) LogWarn(string)                                          {}
func (discard) LogError(string)                                         {}
func (discard) LogPhase(string)                                         {}
func (discard) LogIterationStart(int, int)                              {}
func (discard) LogTierStart(int, []string)                              {}
func (discard) LogTierComplete(int, []models.GateResult, time.Duration) {}
func (discard) LogGateResult(models.GateResult)                         {}
func (discard) LogIterationComplete(models.IterationRecord)             {}
func (discard) LogCountdown(time.Duration, time.Duration)               {}
func (discard) LogSummary(models.RunSummary)                            {}
