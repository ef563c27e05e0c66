package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/ralph/internal/models"
)

func TestSink_CountersAndReport(t *testing.T) {
	root := t.TempDir()
	start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s := NewSink("ralph-1", "42", root, start)

	s.RecordAPICall()
	s.RecordAPICall()
	s.AddAutoFixes(3)
	s.AddAutoFixes(0)
	s.AddAutoFixes(-1)
	s.RecordIssueCreated()
	accepted := s.AddFilesModified("src/app.go", filepath.Join(root, "src", "app.go"), "../outside.go", "/etc/passwd", "README.md")

	assert.Equal(t, 3, accepted)
	assert.Equal(t, 2, s.RejectedPaths())
	assert.Equal(t, 2, s.APICalls())

	r := s.Report(4, start.Add(90*time.Second))
	assert.Equal(t, models.MetricsReport{
		RunID:            "ralph-1",
		WorkItemID:       "42",
		StartTime:        start,
		DurationMs:       90000,
		Iterations:       4,
		APICalls:         2,
		IssuesCreated:    1,
		AutoFixesApplied: 3,
		FilesModified:    []string{"README.md", "src/app.go"},
	}, r)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.apiCallsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.autoFixesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.issuesTotal))
}

func TestSink_ConcurrentUpdates(t *testing.T) {
	s := NewSink("r", "1", t.TempDir(), time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s.RecordAPICall()
				s.AddAutoFixes(1)
			}
		}()
	}
	wg.Wait()

	r := s.Report(1, time.Now())
	assert.Equal(t, 200, r.APICalls)
	assert.Equal(t, 200, r.AutoFixesApplied)
}

func TestSink_ObserveGate(t *testing.T) {
	s := NewSink("r", "1", t.TempDir(), time.Now())

	s.ObserveGate(models.GateResult{Gate: "test", Score: 20, Duration: 2 * time.Second, Outcome: models.OutcomeOK})
	s.ObserveGate(models.GateResult{Gate: "test", Score: 25, Duration: time.Second})
	s.ObserveGate(models.GateResult{Gate: "build", Outcome: models.OutcomeTimeout})
	s.ObserveIteration(47)

	assert.Equal(t, 25.0, testutil.ToFloat64(s.gateScore.WithLabelValues("test")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.gateOutcomes.WithLabelValues("test", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.gateOutcomes.WithLabelValues("build", "timeout")))
	assert.Equal(t, 47.0, testutil.ToFloat64(s.iterationScore))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.iterationsTotal))
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ralph", "metrics.json")
	s := NewSink("ralph-9", "9", t.TempDir(), time.Now())
	s.RecordAPICall()

	require.NoError(t, WriteReport(path, s.Report(2, time.Now())))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ralph-9", decoded["runId"])
	assert.Equal(t, "9", decoded["workItemId"])
	assert.EqualValues(t, 1, decoded["apiCalls"])
	assert.EqualValues(t, 2, decoded["iterations"])
	assert.Contains(t, decoded, "duration")
	assert.Contains(t, decoded, "filesModified")
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph.prom")
	s := NewSink("ralph-9", "9", t.TempDir(), time.Now())
	s.RecordAPICall()
	s.ObserveGate(models.GateResult{Gate: "security", Score: 25, Duration: time.Second})

	require.NoError(t, s.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `ralph_api_calls_total{issue="9",run_id="ralph-9"} 1`)
	assert.True(t, strings.Contains(text, `ralph_gate_score{gate="security",issue="9",run_id="ralph-9"} 25`))
}

func TestSanitizePath(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name string
		path string
		want string
		ok   bool
	}{
		{"relative", "internal/x.go", "internal/x.go", true},
		{"dot segments inside", "a/../b/c.go", "b/c.go", true},
		{"absolute inside", filepath.Join(root, "main.go"), "main.go", true},
		{"escapes", "../x.go", "", false},
		{"sneaky escape", "a/../../x.go", "", false},
		{"absolute outside", "/tmp/elsewhere/x.go", "", false},
		{"root itself", ".", "", false},
		{"empty", "  ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SanitizePath(root, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
