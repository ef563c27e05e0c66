package score

import "github.com/harrison/ralph/internal/models"

// DecisionInput is what the loop knows at the end of an iteration.
type DecisionInput struct {
	Score             float64
	Target            float64
	Iteration         int // 1-based
	MaxIterations     int
	BlockerIterations int // DefaultBlockerIterations when zero
	RequiredFailed    []string
}

// Decide applies the verdict rules in order: target reached, blocked by
// required gates that keep failing, iterations exhausted, otherwise continue.
func Decide(in DecisionInput) models.Verdict {
	blockerAt := in.BlockerIterations
	if blockerAt <= 0 {
		blockerAt = DefaultBlockerIterations
	}

	switch {
	case in.Score >= in.Target:
		return models.VerdictReached
	case len(in.RequiredFailed) > 0 && in.Iteration >= blockerAt:
		return models.VerdictBlocked
	case in.Iteration >= in.MaxIterations:
		return models.VerdictExhausted
	default:
		return models.VerdictContinue
	}
}

// WantsPullRequest reports whether a finished run should open a pull
// request: always when the target was reached, and after exhaustion when
// the best score cleared the fallback threshold.
func WantsPullRequest(v models.Verdict, bestScore, fallback float64) bool {
	switch v {
	case models.VerdictReached:
		return true
	case models.VerdictExhausted:
		return fallback > 0 && bestScore >= fallback
	default:
		return false
	}
}
