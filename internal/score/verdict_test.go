package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harrison/ralph/internal/models"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		in   DecisionInput
		want models.Verdict
	}{
		{
			name: "scenario A keeps iterating",
			in:   DecisionInput{Score: 52, Target: 95, Iteration: 1, MaxIterations: 15},
			want: models.VerdictContinue,
		},
		{
			name: "target reached",
			in:   DecisionInput{Score: 95, Target: 95, Iteration: 2, MaxIterations: 15},
			want: models.VerdictReached,
		},
		{
			name: "reached wins over blocked",
			in:   DecisionInput{Score: 96, Target: 95, Iteration: 9, MaxIterations: 15, RequiredFailed: []string{"test"}},
			want: models.VerdictReached,
		},
		{
			name: "required failure before blocker threshold continues",
			in:   DecisionInput{Score: 40, Target: 95, Iteration: 4, MaxIterations: 15, RequiredFailed: []string{"test"}},
			want: models.VerdictContinue,
		},
		{
			name: "required failure at blocker threshold blocks",
			in:   DecisionInput{Score: 40, Target: 95, Iteration: 5, MaxIterations: 15, RequiredFailed: []string{"test"}},
			want: models.VerdictBlocked,
		},
		{
			name: "blocked wins over exhausted",
			in:   DecisionInput{Score: 40, Target: 95, Iteration: 5, MaxIterations: 5, RequiredFailed: []string{"build"}},
			want: models.VerdictBlocked,
		},
		{
			name: "custom blocker threshold",
			in:   DecisionInput{Score: 40, Target: 95, Iteration: 2, MaxIterations: 15, BlockerIterations: 2, RequiredFailed: []string{"build"}},
			want: models.VerdictBlocked,
		},
		{
			name: "exhausted",
			in:   DecisionInput{Score: 90, Target: 95, Iteration: 15, MaxIterations: 15},
			want: models.VerdictExhausted,
		},
		{
			name: "exhausted early when max is below blocker threshold",
			in:   DecisionInput{Score: 10, Target: 95, Iteration: 3, MaxIterations: 3, RequiredFailed: []string{"test"}},
			want: models.VerdictExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.in))
		})
	}
}

func TestWantsPullRequest(t *testing.T) {
	assert.True(t, WantsPullRequest(models.VerdictReached, 95, 85))
	assert.True(t, WantsPullRequest(models.VerdictExhausted, 85, 85))
	assert.False(t, WantsPullRequest(models.VerdictExhausted, 84.5, 85))
	assert.False(t, WantsPullRequest(models.VerdictExhausted, 90, 0))
	assert.False(t, WantsPullRequest(models.VerdictBlocked, 99, 85))
	assert.False(t, WantsPullRequest(models.VerdictContinue, 99, 85))
}
