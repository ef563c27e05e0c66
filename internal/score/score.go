// Package score turns a pass's gate results into one iteration score and a
// verdict for the loop.
package score

import (
	"fmt"

	"github.com/harrison/ralph/internal/models"
)

// Defaults for Policy.
const (
	DefaultPassThreshold     = 0.8
	DefaultMaxScore          = 100.0
	DefaultBonusPoints       = 2.0
	DefaultBlockerIterations = 5
)

// BonusCondition names the rule a bonus is awarded on.
type BonusCondition string

const (
	// FullWeight is met when the gate scores its entire weight.
	FullWeight BonusCondition = "full_weight"
	// NoFindings is met when the gate completes without findings.
	NoFindings BonusCondition = "no_findings"
)

// Valid reports whether c is a known condition.
func (c BonusCondition) Valid() bool {
	return c == FullWeight || c == NoFindings
}

// Bonus adds Points when Gate meets When.
type Bonus struct {
	Gate   string         `yaml:"gate"`
	When   BonusCondition `yaml:"when"`
	Points float64        `yaml:"points"`
}

// Label renders the bonus for logs and reports.
func (b Bonus) Label() string {
	return fmt.Sprintf("+%g %s %s", b.Points, b.Gate, b.When)
}

// Policy holds the scoring constants.
type Policy struct {
	PassThreshold float64
	MaxScore      float64
	Bonuses       []Bonus
}

// DefaultPolicy returns the stock policy: 0.8 pass threshold, a 100 point
// ceiling, +2 for a full-weight test gate and +2 for a clean review.
func DefaultPolicy() Policy {
	return Policy{
		PassThreshold: DefaultPassThreshold,
		MaxScore:      DefaultMaxScore,
		Bonuses: []Bonus{
			{Gate: "test", When: FullWeight, Points: DefaultBonusPoints},
			{Gate: "review", When: NoFindings, Points: DefaultBonusPoints},
		},
	}
}

// Breakdown is an aggregated iteration score.
type Breakdown struct {
	Base           float64
	Bonus          float64
	Total          float64
	AppliedBonuses []string
}

// Aggregator sums gate results under a Policy. It holds no state between
// calls.
type Aggregator struct {
	policy Policy
}

// NewAggregator creates an Aggregator. A non-positive MaxScore selects
// DefaultMaxScore.
func NewAggregator(p Policy) *Aggregator {
	if p.MaxScore <= 0 {
		p.MaxScore = DefaultMaxScore
	}
	return &Aggregator{policy: p}
}

// Policy returns the policy in effect.
func (a *Aggregator) Policy() Policy {
	return a.policy
}

// Aggregate sums the scores of weighted gates, applies bonuses and clamps
// the total to [0, MaxScore]. Results for gates absent from specs, and for
// weight-0 gates, never contribute.
func (a *Aggregator) Aggregate(specs []models.GateSpec, results []models.GateResult) Breakdown {
	byName := make(map[string]models.GateSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	var b Breakdown
	seen := map[string]bool{}
	for _, r := range results {
		s, ok := byName[r.Gate]
		if !ok || s.Advisory() || seen[r.Gate] {
			continue
		}
		seen[r.Gate] = true
		b.Base += clamp(r.Score, 0, s.Weight)
	}

	for _, bonus := range a.policy.Bonuses {
		if a.earned(bonus, byName, results) {
			b.Bonus += bonus.Points
			b.AppliedBonuses = append(b.AppliedBonuses, bonus.Label())
		}
	}

	b.Total = clamp(b.Base+b.Bonus, 0, a.policy.MaxScore)
	return b
}

func (a *Aggregator) earned(bonus Bonus, specs map[string]models.GateSpec, results []models.GateResult) bool {
	s, ok := specs[bonus.Gate]
	if !ok {
		return false
	}
	for _, r := range results {
		if r.Gate != bonus.Gate {
			continue
		}
		if r.Outcome != "" && r.Outcome != models.OutcomeOK {
			return false
		}
		switch bonus.When {
		case FullWeight:
			return s.Weight > 0 && r.Score >= s.Weight
		case NoFindings:
			return len(r.Findings) == 0
		}
		return false
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
