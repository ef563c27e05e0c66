// Package gate runs verification gates against capability providers and
// schedules them in tiers.
package gate

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harrison/ralph/internal/budget"
	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/provider"
	"github.com/harrison/ralph/internal/run"
)

// DefaultPassThreshold is the fraction of its weight a required gate must score.
const DefaultPassThreshold = 0.8

// Call is one provider invocation made under the run's budgets.
type Call struct {
	Gate       string
	Prompt     string
	Tools      []string
	AllowEdits bool
	Timeout    time.Duration
}

// Runner executes single gates. It is safe for concurrent use; all shared
// state lives in the run.Context, whose members serialize their own access.
type Runner struct {
	rc            *run.Context
	passThreshold float64
	tracer        trace.Tracer
}

// NewRunner creates a Runner for one run. A non-positive passThreshold
// selects DefaultPassThreshold.
func NewRunner(rc *run.Context, passThreshold float64) *Runner {
	if passThreshold <= 0 {
		passThreshold = DefaultPassThreshold
	}
	return &Runner{
		rc:            rc,
		passThreshold: passThreshold,
		tracer:        otel.Tracer("ralph/gate"),
	}
}

type callResult struct {
	resp *provider.Response
	err  error
}

// Invoke issues c after the pre-flight budget checks and races it against
// the timeout. On timeout the call's context is cancelled but not awaited;
// whatever the provider returns afterwards is dropped. Failures come back
// as *GateError.
func (r *Runner) Invoke(ctx context.Context, c Call) (*provider.Response, string, error) {
	if !r.rc.Breaker.CanProceed() {
		err := newGateError(c.Gate, KindCircuitOpen, nil)
		r.audit(c.Gate, "", err, 0)
		return nil, "", err
	}

	p, execCtx, err := r.rc.Providers.ClientForGate(c.Gate)
	if err != nil {
		gerr := newGateError(c.Gate, KindCallFailed, err)
		r.audit(c.Gate, "", gerr, 0)
		return nil, "", gerr
	}
	label := execCtx.Label()

	if !r.rc.Limiter.TryAcquire() {
		w := r.rc.Limiter.Window()
		err := newGateError(c.Gate, KindRateLimited,
			fmt.Errorf("%d/%d calls used, window resets at %s", w.CallCount, w.MaxPerHour, w.ResetTime.Format(time.Kitchen)))
		r.audit(c.Gate, label, err, 0)
		return nil, label, err
	}
	if r.rc.Metrics != nil {
		r.rc.Metrics.RecordAPICall()
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = models.DefaultGateTimeout
	}

	req := provider.Request{
		Gate:            c.Gate,
		Prompt:          c.Prompt,
		Tools:           c.Tools,
		Exec:            execCtx,
		SessionID:       r.rc.SessionID(),
		AllowEdits:      c.AllowEdits,
		DisallowedTools: r.rc.DisallowedTools,
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan callResult, 1)
	start := time.Now()
	go func() {
		resp, err := p.Evaluate(callCtx, req)
		done <- callResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var resp *provider.Response
	var callErr error
	select {
	case res := <-done:
		resp, callErr = res.resp, res.err
		if callErr == nil && resp == nil {
			callErr = fmt.Errorf("provider returned no response")
		}
		if callErr != nil {
			callErr = newGateError(c.Gate, KindCallFailed, callErr)
		}
	case <-timer.C:
		callErr = newGateError(c.Gate, KindTimeout,
			fmt.Errorf("no response after %s: %w", timeout, context.DeadlineExceeded))
	case <-ctx.Done():
		callErr = newGateError(c.Gate, KindCallFailed, ctx.Err())
	}

	if kind := KindOf(callErr); kind.countsAsBreakerFailure() && ctx.Err() == nil {
		r.rc.Breaker.RecordFailure()
	}
	if limit, ok := provider.LimitOf(callErr); ok {
		r.noteLimit(c.Gate, label, limit)
	}

	r.audit(c.Gate, label, callErr, time.Since(start))
	if callErr != nil {
		return nil, label, callErr
	}
	return resp, label, nil
}

// Run evaluates one gate and always returns a result; failures are folded
// into the result's Outcome and Error.
func (r *Runner) Run(ctx context.Context, spec models.GateSpec) models.GateResult {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "gate."+spec.Name, trace.WithAttributes(
		attribute.String("gate.name", spec.Name),
		attribute.Int("gate.tier", spec.Tier),
		attribute.Float64("gate.weight", spec.Weight),
		attribute.Bool("gate.required", spec.Required),
	))
	defer span.End()

	result := models.GateResult{
		Gate:     spec.Name,
		MaxScore: spec.Weight,
		Outcome:  models.OutcomeOK,
		Findings: []models.Finding{},
	}

	prompt := spec.Prompt
	if prompt == "" {
		prompt = DefaultPrompt(spec.Name, spec.Weight)
	}
	tools := spec.Tools
	if len(tools) == 0 {
		tools = DefaultTools
	}

	resp, label, err := r.Invoke(ctx, Call{
		Gate:       spec.Name,
		Prompt:     prompt,
		Tools:      tools,
		AllowEdits: spec.AutoFix,
		Timeout:    spec.EffectiveTimeout(),
	})
	result.ProviderLabel = label

	if err == nil {
		var ev Evaluation
		ev, err = ParseEvaluation(resp.Output)
		if err != nil {
			err = newGateError(spec.Name, KindMalformed, err)
			r.rc.Log().LogError(fmt.Sprintf("Failed to parse %s result: %v (output: %s)", spec.Name, err, truncate(resp.Output, 200)))
		} else {
			r.apply(spec, ev, &result)
		}
	}

	if err != nil {
		kind := KindOf(err)
		result.Outcome = kind.Outcome()
		result.Error = err.Error()
		result.TimedOut = IsTimeout(err)
		result.Score = 0
		result.Passed = false
		if kind != KindMalformed {
			r.rc.Log().LogWarn(err.Error())
		}
		span.SetStatus(codes.Error, kind.String())
	}

	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Float64("gate.score", result.Score),
		attribute.Bool("gate.passed", result.Passed),
		attribute.String("gate.outcome", string(result.Outcome)),
		attribute.String("gate.provider", result.ProviderLabel),
	)

	if r.rc.Metrics != nil {
		r.rc.Metrics.ObserveGate(result)
	}
	r.rc.Log().LogGateResult(result)
	return result
}

func (r *Runner) apply(spec models.GateSpec, ev Evaluation, result *models.GateResult) {
	score := ev.Score
	if score < 0 {
		score = 0
	}
	if score > spec.Weight {
		score = spec.Weight
	}
	result.Score = score

	if spec.Required {
		result.Passed = score >= spec.Weight*r.passThreshold
	} else {
		result.Passed = true
	}

	findings := ev.Findings
	if len(findings) > models.MaxFindingsPerGate {
		findings = findings[:models.MaxFindingsPerGate]
	}
	if findings != nil {
		result.Findings = findings
	}

	if spec.AutoFix && ev.FixedCount > 0 {
		result.AutoFixCount = ev.FixedCount
		if r.rc.Metrics != nil {
			r.rc.Metrics.AddAutoFixes(ev.FixedCount)
		}
	}

	if len(ev.FilesModified) > 0 {
		result.FilesModified = ev.FilesModified
		if r.rc.Metrics != nil {
			r.rc.Metrics.AddFilesModified(ev.FilesModified...)
		}
	}
}

func (r *Runner) noteLimit(gate, label string, limit *budget.ProviderLimit) {
	if limit.RetryAfter <= 0 {
		r.rc.Log().LogWarn(fmt.Sprintf("Provider %s usage limit reached on %s gate", label, gate))
		return
	}
	r.rc.Log().LogWarn(fmt.Sprintf("Provider %s usage limit reached on %s gate, retry in %s", label, gate, limit.RetryAfter))
	r.rc.NoteProviderRetry(limit.RetryAfter)
}

func (r *Runner) audit(gate, label string, err error, d time.Duration) {
	outcome := models.OutcomeOK
	rec := models.AuditRecord{
		Timestamp:  time.Now(),
		Gate:       gate,
		Provider:   label,
		DurationMs: d.Milliseconds(),
	}
	if err != nil {
		outcome = KindOf(err).Outcome()
		rec.Error = err.Error()
	}
	rec.Outcome = string(outcome)
	r.rc.RecordAudit(rec)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
