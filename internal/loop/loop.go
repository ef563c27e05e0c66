// Package loop drives one run through its phases: implement the work item,
// iterate verification passes until a terminal verdict, then open the
// trailing pull request.
package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harrison/ralph/internal/budget"
	"github.com/harrison/ralph/internal/config"
	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/gate"
	"github.com/harrison/ralph/internal/metrics"
	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/platform"
	"github.com/harrison/ralph/internal/run"
	"github.com/harrison/ralph/internal/score"
)

// DefaultImplementTimeout bounds the implementation call.
const DefaultImplementTimeout = 30 * time.Minute

// ImplementTools is the toolset of the implementation phase.
var ImplementTools = []string{"Read", "Edit", "Write", "Bash", "Glob", "Grep", "Task"}

// ErrNoSession is returned when the implementation phase yields no session.
var ErrNoSession = errors.New("implementation phase returned no session")

// Settings are the run parameters the loop reads.
type Settings struct {
	Gates             []models.GateSpec
	Policy            score.Policy
	TargetScore       float64
	MaxIterations     int
	IterationDelay    time.Duration
	Supervised        bool
	SupervisedPause   time.Duration
	BlockerIterations int
	FallbackPRScore   float64
	MaxIssuesPerGate  int
	MaxIssuesPerRun   int
	ImplementTimeout  time.Duration
	HeadBranch        string
	BaseBranch        string
	ForbiddenPatterns []string

	// Optional output files written when the run finishes.
	MetricsPath  string
	TextfilePath string
}

// FromConfig derives Settings for issueID from a validated configuration.
func FromConfig(cfg *config.Config, issueID string, supervised bool) Settings {
	return Settings{
		Gates:             cfg.GateSpecs(),
		Policy:            cfg.ScorePolicy(),
		TargetScore:       cfg.TargetScore,
		MaxIterations:     cfg.MaxIterations,
		IterationDelay:    cfg.IterationDelay.Std(),
		Supervised:        supervised,
		SupervisedPause:   cfg.SupervisedPause.Std(),
		BlockerIterations: cfg.BlockerIterations,
		FallbackPRScore:   cfg.FallbackPRScore,
		MaxIssuesPerGate:  cfg.MaxIssuesPerGate,
		MaxIssuesPerRun:   cfg.Safety.MaxIssuesCreatedPerRun,
		ImplementTimeout:  DefaultImplementTimeout,
		HeadBranch:        cfg.BranchName(issueID),
		BaseBranch:        cfg.Git.BaseBranch,
		ForbiddenPatterns: cfg.Git.ForbiddenPatterns,
	}
}

// CheckpointSaver persists run snapshots.
type CheckpointSaver interface {
	Save(state models.RunState) error
}

// HistoryRecorder persists iteration records.
type HistoryRecorder interface {
	RecordIteration(ctx context.Context, runID, issueID string, rec models.IterationRecord) error
}

// Outcome is what a run produced.
type Outcome struct {
	Summary     models.RunSummary
	Iterations  []models.IterationRecord
	Escalations []models.Escalation
	Metrics     models.MetricsReport
}

// Loop runs one work item. A Loop is single-use.
type Loop struct {
	rc       *run.Context
	platform platform.Client
	settings Settings

	runner    *gate.Runner
	scheduler *gate.Scheduler
	scorer    *score.Aggregator
	pauser    *budget.Pauser

	checkpoints CheckpointSaver
	history     HistoryRecorder
	now         func() time.Time
	tracer      trace.Tracer

	specs       map[string]models.GateSpec
	filed       map[string]bool
	escalations []models.Escalation
	limitHit    bool
}

// Option customizes a Loop.
type Option func(*Loop)

// WithCheckpoints saves a snapshot after every iteration.
func WithCheckpoints(s CheckpointSaver) Option {
	return func(l *Loop) { l.checkpoints = s }
}

// WithHistory records every iteration.
func WithHistory(h HistoryRecorder) Option {
	return func(l *Loop) { l.history = h }
}

// WithPauser replaces the pauser used between iterations.
func WithPauser(p *budget.Pauser) Option {
	return func(l *Loop) { l.pauser = p }
}

// WithClock injects the time source used for records and snapshots.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// New creates a Loop for rc.IssueID.
func New(rc *run.Context, client platform.Client, s Settings, opts ...Option) *Loop {
	runner := gate.NewRunner(rc, s.Policy.PassThreshold)
	l := &Loop{
		rc:        rc,
		platform:  client,
		settings:  s,
		runner:    runner,
		scheduler: gate.NewScheduler(runner, rc),
		scorer:    score.NewAggregator(s.Policy),
		now:       time.Now,
		tracer:    otel.Tracer("ralph/loop"),
		specs:     make(map[string]models.GateSpec, len(s.Gates)),
		filed:     map[string]bool{},
	}
	for _, g := range s.Gates {
		l.specs[g.Name] = g
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.pauser == nil {
		l.pauser = budget.NewPauser(rc.Log().LogCountdown)
	}
	return l
}

// Run executes the run. A cancelled ctx stops the loop after saving a
// final checkpoint; the partial Outcome is returned with ctx's error.
func (l *Loop) Run(ctx context.Context) (*Outcome, error) {
	s := l.settings
	log := l.rc.Log()

	ctx, span := l.tracer.Start(ctx, "loop.run", trace.WithAttributes(
		attribute.String("run.id", l.rc.RunID),
		attribute.String("run.issue", l.rc.IssueID),
		attribute.Float64("run.target", s.TargetScore),
	))
	defer span.End()

	out := &Outcome{}

	log.LogPhase(display.ActiveForm(fmt.Sprintf("Implement issue #%s", l.rc.IssueID)))
	if err := l.implement(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		l.finish(ctx, out, models.VerdictInterrupted, nil)
		return out, err
	}

	log.LogPhase(display.ActiveForm("Run quality gates"))

	var last models.IterationRecord
	verdict := models.VerdictContinue
	var runErr error

	for i := 1; i <= s.MaxIterations; i++ {
		rec, err := l.iterate(ctx, i)
		if err != nil {
			runErr = err
			break
		}
		out.Iterations = append(out.Iterations, rec)
		last = rec
		verdict = rec.Verdict
		if verdict.Terminal() {
			break
		}

		delay := s.IterationDelay
		if s.Supervised {
			delay = s.SupervisedPause
			log.LogInfo(fmt.Sprintf("Supervised mode: pausing %s for review", delay))
		}
		if retry := l.rc.TakeProviderRetry(); retry > delay {
			log.LogWarn(fmt.Sprintf("Provider usage limit: waiting %s before the next iteration", retry))
			delay = retry
		}
		if err := l.pauser.Pause(ctx, delay); err != nil {
			runErr = err
			break
		}
	}

	if runErr != nil {
		verdict = models.VerdictInterrupted
		l.checkpoint(last.Iteration, last.Score)
		span.SetStatus(codes.Error, runErr.Error())
	}

	var lastRec *models.IterationRecord
	if len(out.Iterations) > 0 {
		lastRec = &last
	}
	l.finish(ctx, out, verdict, lastRec)
	return out, runErr
}

func (l *Loop) implement(ctx context.Context) error {
	s := l.settings
	log := l.rc.Log()

	issue, err := l.platform.ViewIssue(ctx, l.rc.IssueID)
	if err != nil {
		return fmt.Errorf("fetch issue #%s: %w", l.rc.IssueID, err)
	}

	ctx, span := l.tracer.Start(ctx, "loop.implement")
	defer span.End()

	resp, label, err := l.runner.Invoke(ctx, gate.Call{
		Gate:       config.ImplementGate,
		Prompt:     ImplementPrompt(issue, l.rc.IssueID, s.HeadBranch, s.BaseBranch),
		Tools:      ImplementTools,
		AllowEdits: true,
		Timeout:    s.ImplementTimeout,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("implementation phase: %w", err)
	}
	if resp.SessionID == "" {
		log.LogError("Failed to initialize session")
		span.SetStatus(codes.Error, ErrNoSession.Error())
		return ErrNoSession
	}

	l.rc.SetSessionID(resp.SessionID)
	log.LogInfo(fmt.Sprintf("Session initialized: %s (provider %s)", resp.SessionID, label))
	l.checkpoint(0, 0)
	return nil
}

// iterate runs one verification pass. It returns ctx's error, and no
// record, when the pass was cut short by cancellation.
func (l *Loop) iterate(ctx context.Context, iteration int) (models.IterationRecord, error) {
	s := l.settings
	log := l.rc.Log()

	ctx, span := l.tracer.Start(ctx, "loop.iteration", trace.WithAttributes(
		attribute.Int("iteration", iteration),
	))
	defer span.End()

	start := l.now()
	callsBefore := l.apiCalls()
	log.LogIterationStart(iteration, s.MaxIterations)

	pass := l.scheduler.RunPass(ctx, s.Gates)
	if err := ctx.Err(); err != nil || pass.Interrupted {
		if err == nil {
			err = context.Canceled
		}
		return models.IterationRecord{}, err
	}

	b := l.scorer.Aggregate(s.Gates, pass.Results)
	rec := models.IterationRecord{
		Iteration:   iteration,
		Score:       b.Total,
		TargetScore: s.TargetScore,
		Gates:       pass.Results,
		Duration:    l.now().Sub(start),
		APICalls:    l.apiCalls() - callsBefore,
		BlockedTier: pass.BlockedTier,
		Bonuses:     b.AppliedBonuses,
	}
	requiredFailed := rec.RequiredFailures(l.specs)
	rec.Verdict = score.Decide(score.DecisionInput{
		Score:             rec.Score,
		Target:            s.TargetScore,
		Iteration:         iteration,
		MaxIterations:     s.MaxIterations,
		BlockerIterations: s.BlockerIterations,
		RequiredFailed:    requiredFailed,
	})

	span.SetAttributes(
		attribute.Float64("iteration.score", rec.Score),
		attribute.String("iteration.verdict", string(rec.Verdict)),
	)
	if l.rc.Metrics != nil {
		l.rc.Metrics.ObserveIteration(rec.Score)
	}
	log.LogIterationComplete(rec)

	l.postProgress(ctx, rec)
	if l.history != nil {
		if err := l.history.RecordIteration(ctx, l.rc.RunID, l.rc.IssueID, rec); err != nil {
			log.LogWarn(fmt.Sprintf("history write failed: %v", err))
		}
	}
	l.escalate(ctx, iteration, rec.Gates)
	l.checkpoint(iteration, rec.Score)

	switch rec.Verdict {
	case models.VerdictReached:
		log.LogInfo("Target score reached")
	case models.VerdictBlocked:
		log.LogWarn(fmt.Sprintf("BLOCKED: required gates failed after %d iterations", iteration))
		l.block(ctx, iteration, requiredFailed)
	}
	return rec, nil
}

func (l *Loop) postProgress(ctx context.Context, rec models.IterationRecord) {
	autoFixes, files := 0, 0
	if l.rc.Metrics != nil {
		m := l.rc.Metrics.Report(rec.Iteration, l.now())
		autoFixes, files = m.AutoFixesApplied, len(m.FilesModified)
	}
	body := ProgressReport(l.rc.RunID, rec, autoFixes, files)
	names := make([]string, len(rec.Gates))
	for i, g := range rec.Gates {
		names[i] = g.Gate
	}
	if _, err := platform.ValidateReport(body, names); err != nil {
		l.rc.Log().LogWarn(fmt.Sprintf("Progress report for iteration %d is malformed: %v", rec.Iteration, err))
	}
	if _, err := l.platform.CommentIssue(ctx, l.rc.IssueID, body); err != nil {
		l.rc.Log().LogWarn(fmt.Sprintf("Failed to post progress to issue #%s: %v", l.rc.IssueID, err))
	}
}

func (l *Loop) block(ctx context.Context, iteration int, gates []string) {
	esc := models.Escalation{
		Kind:      models.EscalationBlocked,
		Iteration: iteration,
		Gates:     gates,
		IssueID:   l.rc.IssueID,
	}
	if _, err := l.platform.CommentIssue(ctx, l.rc.IssueID, BlockedComment(gates)); err != nil {
		esc.Error = err.Error()
		l.rc.Log().LogWarn(fmt.Sprintf("Failed to post blocked notice: %v", err))
	}
	l.escalations = append(l.escalations, esc)
}

// escalate files sub-issues for critical and high findings of non-required
// gates. Each gate files at most MaxIssuesPerGate per iteration, the run at
// most MaxIssuesPerRun, and a gate+title pair is filed once per run.
func (l *Loop) escalate(ctx context.Context, iteration int, results []models.GateResult) {
	s := l.settings
	log := l.rc.Log()

	for _, r := range results {
		if l.specs[r.Gate].Required {
			continue
		}
		filed := 0
		for _, f := range r.Findings {
			if !f.Severity.Escalates() {
				continue
			}
			if filed >= s.MaxIssuesPerGate {
				break
			}
			key := r.Gate + "\x00" + strings.ToLower(strings.TrimSpace(f.Title))
			if l.filed[key] {
				continue
			}
			if len(l.rc.CreatedIssues()) >= s.MaxIssuesPerRun {
				if !l.limitHit {
					l.limitHit = true
					log.LogWarn(fmt.Sprintf("%v (%d per run)", platform.ErrIssueLimitReached, s.MaxIssuesPerRun))
				}
				return
			}

			l.filed[key] = true
			filed++
			finding := f
			esc := models.Escalation{
				Kind:      models.EscalationFinding,
				Gate:      r.Gate,
				Iteration: iteration,
				Finding:   &finding,
			}

			id, err := l.platform.CreateIssue(ctx, SubIssue(l.rc.IssueID, r.Gate, f, s.ForbiddenPatterns))
			if err != nil {
				esc.Error = err.Error()
				log.LogWarn(fmt.Sprintf("Failed to create sub-issue for %s finding %q: %v", r.Gate, f.Title, err))
			} else {
				esc.IssueID = id
				l.rc.AddCreatedIssue(id)
				if l.rc.Metrics != nil {
					l.rc.Metrics.RecordIssueCreated()
				}
				log.LogInfo(fmt.Sprintf("Created issue #%s for %s finding", id, r.Gate))
			}
			l.escalations = append(l.escalations, esc)
		}
	}
}

func (l *Loop) checkpoint(iteration int, lastScore float64) {
	if l.checkpoints == nil {
		return
	}
	if err := l.checkpoints.Save(l.rc.Snapshot(iteration, lastScore, l.now())); err != nil {
		l.rc.Log().LogWarn(fmt.Sprintf("checkpoint save failed: %v", err))
	}
}

// finish opens the pull request when the verdict calls for one, writes
// the metrics files and logs the summary. last is nil when no iteration
// ran.
func (l *Loop) finish(ctx context.Context, out *Outcome, verdict models.Verdict, last *models.IterationRecord) {
	s := l.settings
	log := l.rc.Log()
	now := l.now()

	summary := models.RunSummary{
		RunID:       l.rc.RunID,
		IssueID:     l.rc.IssueID,
		Verdict:     verdict,
		TargetScore: s.TargetScore,
		Iterations:  len(out.Iterations),
		Duration:    now.Sub(l.rc.StartTime),
	}
	for _, rec := range out.Iterations {
		if rec.Score > summary.BestScore {
			summary.BestScore = rec.Score
		}
	}
	if last != nil {
		summary.FinalScore = last.Score
	}

	if last != nil && score.WantsPullRequest(verdict, summary.BestScore, s.FallbackPRScore) {
		log.LogPhase(display.ActiveForm("Create pull request"))
		req := PullRequest(l.rc.IssueID, s.HeadBranch, s.BaseBranch, summary, *last, s.ForbiddenPatterns)
		if pr, err := l.platform.CreatePullRequest(ctx, req); err != nil {
			log.LogError(fmt.Sprintf("Failed to create pull request: %v", err))
		} else {
			summary.PullRequest = "#" + pr
			log.LogInfo(fmt.Sprintf("Pull request #%s opened: %s -> %s", pr, s.HeadBranch, s.BaseBranch))
		}
	}

	summary.IssuesCreated = len(l.rc.CreatedIssues())
	out.Summary = summary
	out.Escalations = l.escalations

	if l.rc.Metrics != nil {
		out.Metrics = l.rc.Metrics.Report(len(out.Iterations), now)
		if s.MetricsPath != "" {
			if err := metrics.WriteReport(s.MetricsPath, out.Metrics); err != nil {
				log.LogWarn(fmt.Sprintf("metrics write failed: %v", err))
			}
		}
		if s.TextfilePath != "" {
			if err := l.rc.Metrics.WriteTextfile(s.TextfilePath); err != nil {
				log.LogWarn(fmt.Sprintf("metrics textfile write failed: %v", err))
			}
		}
	}

	log.LogSummary(summary)
}

func (l *Loop) apiCalls() int {
	if l.rc.Metrics == nil {
		return 0
	}
	return l.rc.Metrics.APICalls()
}
