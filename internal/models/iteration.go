package models

import "time"

// Verdict is the decision taken at the end of an iteration.
type Verdict string

const (
	VerdictContinue  Verdict = "continue"
	VerdictReached   Verdict = "reached"
	VerdictBlocked   Verdict = "blocked"
	VerdictExhausted Verdict = "exhausted"

	// VerdictInterrupted marks a run that ended before any terminal verdict.
	VerdictInterrupted Verdict = "interrupted"
)

// Terminal reports whether the verdict stops the loop.
func (v Verdict) Terminal() bool {
	return v == VerdictReached || v == VerdictBlocked || v == VerdictExhausted
}

// IterationRecord captures one pass of the gate scheduler plus its aggregation.
type IterationRecord struct {
	Iteration   int           `json:"iteration"`
	Score       float64       `json:"score"`
	TargetScore float64       `json:"target_score"`
	Gates       []GateResult  `json:"gates"`
	Verdict     Verdict       `json:"verdict"`
	Duration    time.Duration `json:"duration"`
	APICalls    int           `json:"api_calls"`
	BlockedTier int           `json:"blocked_tier"` // -1 when every tier ran
	Bonuses     []string      `json:"bonuses,omitempty"`
}

// RequiredFailures returns the names of required gates that did not pass.
func (r IterationRecord) RequiredFailures(specs map[string]GateSpec) []string {
	var failed []string
	for _, g := range r.Gates {
		if spec, ok := specs[g.Gate]; ok && spec.Required && !g.Passed {
			failed = append(failed, g.Gate)
		}
	}
	return failed
}

// EscalationKind distinguishes sub-issue escalations from blocked-run notices.
type EscalationKind string

const (
	EscalationFinding EscalationKind = "finding"
	EscalationBlocked EscalationKind = "blocked"
)

// Escalation records a finding or condition raised to the issue tracker.
type Escalation struct {
	Kind      EscalationKind `json:"kind"`
	Gate      string         `json:"gate,omitempty"`
	Iteration int            `json:"iteration"`
	Finding   *Finding       `json:"finding,omitempty"`
	Gates     []string       `json:"gates,omitempty"` // failing required gates for blocked escalations
	IssueID   string         `json:"issue_id,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// RunSummary is the human-facing result of a whole run.
type RunSummary struct {
	RunID         string
	IssueID       string
	Verdict       Verdict
	FinalScore    float64
	BestScore     float64
	TargetScore   float64
	Iterations    int
	Duration      time.Duration
	IssuesCreated int
	PullRequest   string
}
