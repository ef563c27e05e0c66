package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultGateTimeout is applied to gates that do not declare a timeout.
const DefaultGateTimeout = 5 * time.Minute

// MaxFindingsPerGate caps the findings kept on a single GateResult.
const MaxFindingsPerGate = 50

// GateSpec describes one verification gate as configured for a run.
type GateSpec struct {
	Name        string        // Gate identity (e.g., "test", "security")
	Description string        // Human-readable description
	Weight      float64       // Score ceiling, >= 0. Weight 0 marks an advisory gate
	Required    bool          // Failing a required gate blocks later tiers
	AutoFix     bool          // Gate may mutate the workspace
	Tier        int           // Parallel tier, >= 0
	Timeout     time.Duration // Per-gate timeout (DefaultGateTimeout when zero)
	Tools       []string      // Toolset handed to the capability provider
	Prompt      string        // Evaluation prompt
}

// EffectiveTimeout returns the configured timeout or the default.
func (g GateSpec) EffectiveTimeout() time.Duration {
	if g.Timeout <= 0 {
		return DefaultGateTimeout
	}
	return g.Timeout
}

// Advisory reports whether the gate is informational only. Advisory gates
// never contribute to the score.
func (g GateSpec) Advisory() bool {
	return g.Weight <= 0
}

// GateOutcome classifies how a gate evaluation ended.
type GateOutcome string

const (
	OutcomeOK          GateOutcome = "ok"
	OutcomeTimeout     GateOutcome = "timeout"
	OutcomeCallFailed  GateOutcome = "call_failed"
	OutcomeMalformed   GateOutcome = "malformed"
	OutcomeRateLimited GateOutcome = "rate_limited"
	OutcomeCircuitOpen GateOutcome = "circuit_open"
)

// GateResult is the scored outcome of one gate evaluation.
type GateResult struct {
	Gate          string        `json:"gate"`
	Score         float64       `json:"score"`
	MaxScore      float64       `json:"max_score"`
	Passed        bool          `json:"passed"`
	TimedOut      bool          `json:"timed_out"`
	Findings      []Finding     `json:"findings"`
	Duration      time.Duration `json:"duration"`
	AutoFixCount  int           `json:"auto_fix_count"`
	ProviderLabel string        `json:"provider"`
	Outcome       GateOutcome   `json:"outcome"`
	Error         string        `json:"error,omitempty"`
	FilesModified []string      `json:"files_modified,omitempty"`
}

// Status renders the result the way progress reports show it.
func (r GateResult) Status() string {
	switch {
	case r.MaxScore == 0:
		return "INFO"
	case r.Passed:
		return "PASS"
	default:
		return "FAIL"
	}
}

// Severity of a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ParseSeverity normalizes a provider-reported severity. Unknown values map to info.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Escalates reports whether findings of this severity are escalated as sub-issues.
func (s Severity) Escalates() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// Finding is one issue reported by a gate.
type Finding struct {
	Severity       Severity `json:"severity"`
	Title          string   `json:"title"`
	File           string   `json:"file,omitempty"`
	Line           int      `json:"line,omitempty"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation,omitempty"`
	AutoFixable    bool     `json:"autoFixable"`
}

// UnmarshalJSON accepts the loose shapes providers produce: string line numbers,
// upper-case severities, and "issue"/"message" in place of "title".
func (f *Finding) UnmarshalJSON(data []byte) error {
	var raw struct {
		Severity       string          `json:"severity"`
		Title          string          `json:"title"`
		Issue          string          `json:"issue"`
		Message        string          `json:"message"`
		File           string          `json:"file"`
		Line           json.RawMessage `json:"line"`
		Description    string          `json:"description"`
		Recommendation string          `json:"recommendation"`
		Fix            string          `json:"fix"`
		AutoFixable    bool            `json:"autoFixable"`
		AutoFixable2   bool            `json:"auto_fixable"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("finding: %w", err)
	}

	f.Severity = ParseSeverity(raw.Severity)
	f.Title = firstNonEmpty(raw.Title, raw.Issue, raw.Message)
	f.File = raw.File
	f.Line = parseLine(raw.Line)
	f.Description = firstNonEmpty(raw.Description, raw.Message, raw.Issue)
	f.Recommendation = firstNonEmpty(raw.Recommendation, raw.Fix)
	f.AutoFixable = raw.AutoFixable || raw.AutoFixable2
	return nil
}

func parseLine(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
