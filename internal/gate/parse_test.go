package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/ralph/internal/models"
)

func TestParseEvaluation(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    Evaluation
		wantErr string
	}{
		{
			name:   "plain object with findings",
			output: `{"score": 22, "findings": [{"severity": "HIGH", "title": "SQL injection", "file": "db.go", "line": "42"}]}`,
			want: Evaluation{
				Score: 22,
				Findings: []models.Finding{
					{Severity: models.SeverityHigh, Title: "SQL injection", File: "db.go", Line: 42},
				},
			},
		},
		{
			name:   "issues key and fixed list",
			output: "Here you go:\n```json\n{\"score\": 18.5, \"issues\": [{\"severity\": \"low\", \"issue\": \"naming\"}], \"fixed\": [\"a\", \"b\"]}\n```",
			want: Evaluation{
				Score:      18.5,
				Findings:   []models.Finding{{Severity: models.SeverityLow, Title: "naming", Description: "naming"}},
				FixedCount: 2,
			},
		},
		{
			name:   "fixed_count wins over fixed",
			output: `{"score": 10, "fixed_count": 4, "fixed": ["x"], "files_modified": ["a.go"]}`,
			want:   Evaluation{Score: 10, FixedCount: 4, FilesModified: []string{"a.go"}},
		},
		{
			name:   "string score",
			output: `Result: {"score": "15"}`,
			want:   Evaluation{Score: 15},
		},
		{name: "no object", output: "the tests all passed", wantErr: "no JSON object"},
		{name: "missing score", output: `{"findings": []}`, wantErr: "no score"},
		{name: "null score", output: `{"score": null}`, wantErr: "no score"},
		{name: "non-numeric score", output: `{"score": "great"}`, wantErr: "not a number"},
		{name: "NaN score", output: `{"score": "NaN"}`, wantErr: "not a finite number"},
		{name: "infinite score", output: `{"score": "Inf"}`, wantErr: "not a finite number"},
		{name: "spelled out infinity", output: `{"score": "Infinity"}`, wantErr: "not a finite number"},
		{name: "negative infinity", output: `{"score": " -Inf "}`, wantErr: "not a finite number"},
		{name: "bad shape", output: `{"score": 5, "findings": "none"}`, wantErr: "decode result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEvaluation(tt.output)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAgentNameAndPrompt(t *testing.T) {
	assert.Equal(t, "security-auditor", AgentName("security"))
	assert.Equal(t, "lint-runner", AgentName("lint"))
	assert.Contains(t, DefaultPrompt("test", 25), "test-runner")
	assert.Contains(t, DefaultPrompt("test", 25), "0-25")
}
