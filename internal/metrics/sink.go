// Package metrics accumulates per-run counters and writes the final report.
package metrics

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harrison/ralph/internal/filelock"
	"github.com/harrison/ralph/internal/models"
)

// Sink is owned by one run. All methods are safe for concurrent use by the
// gates of a tier.
type Sink struct {
	mu              sync.Mutex
	runID           string
	workItemID      string
	startTime       time.Time
	projectRoot     string
	apiCalls        int
	autoFixes       int
	issuesCreated   int
	filesModified   map[string]struct{}
	rejectedPaths   int
	registry        *prometheus.Registry
	apiCallsTotal   prometheus.Counter
	autoFixesTotal  prometheus.Counter
	issuesTotal     prometheus.Counter
	gateScore       *prometheus.GaugeVec
	gateDuration    *prometheus.HistogramVec
	gateOutcomes    *prometheus.CounterVec
	iterationScore  prometheus.Gauge
	iterationsTotal prometheus.Counter
}

// NewSink creates a Sink with its own prometheus registry. Modified file
// paths are recorded relative to projectRoot.
func NewSink(runID, workItemID, projectRoot string, start time.Time) *Sink {
	s := &Sink{
		runID:         runID,
		workItemID:    workItemID,
		startTime:     start,
		projectRoot:   projectRoot,
		filesModified: map[string]struct{}{},
		registry:      prometheus.NewRegistry(),
	}

	constLabels := prometheus.Labels{"run_id": runID, "issue": workItemID}

	s.apiCallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "ralph",
		Name:        "api_calls_total",
		Help:        "Capability provider calls issued by this run",
		ConstLabels: constLabels,
	})
	s.autoFixesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "ralph",
		Name:        "autofixes_total",
		Help:        "Auto-fixes reported by gates with auto-fix enabled",
		ConstLabels: constLabels,
	})
	s.issuesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "ralph",
		Name:        "issues_created_total",
		Help:        "Sub-issues created for escalated findings",
		ConstLabels: constLabels,
	})
	s.gateScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   "ralph",
		Name:        "gate_score",
		Help:        "Most recent score per gate",
		ConstLabels: constLabels,
	}, []string{"gate"})
	s.gateDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   "ralph",
		Name:        "gate_duration_seconds",
		Help:        "Gate evaluation duration in seconds",
		ConstLabels: constLabels,
		Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"gate"})
	s.gateOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "ralph",
		Name:        "gate_outcomes_total",
		Help:        "Gate evaluations by outcome",
		ConstLabels: constLabels,
	}, []string{"gate", "outcome"})
	s.iterationScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "ralph",
		Name:        "iteration_score",
		Help:        "Aggregated score of the latest iteration",
		ConstLabels: constLabels,
	})
	s.iterationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "ralph",
		Name:        "iterations_total",
		Help:        "Completed iterations",
		ConstLabels: constLabels,
	})

	s.registry.MustRegister(
		s.apiCallsTotal, s.autoFixesTotal, s.issuesTotal,
		s.gateScore, s.gateDuration, s.gateOutcomes,
		s.iterationScore, s.iterationsTotal,
	)
	return s
}

// RecordAPICall counts one provider call.
func (s *Sink) RecordAPICall() {
	s.mu.Lock()
	s.apiCalls++
	s.mu.Unlock()
	s.apiCallsTotal.Inc()
}

// APICalls returns the calls counted so far.
func (s *Sink) APICalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiCalls
}

// AddAutoFixes adds n applied auto-fixes.
func (s *Sink) AddAutoFixes(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.autoFixes += n
	s.mu.Unlock()
	s.autoFixesTotal.Add(float64(n))
}

// RecordIssueCreated counts one created sub-issue.
func (s *Sink) RecordIssueCreated() {
	s.mu.Lock()
	s.issuesCreated++
	s.mu.Unlock()
	s.issuesTotal.Inc()
}

// AddFilesModified records workspace paths. Paths resolving outside the
// project root are dropped; it returns how many were accepted.
func (s *Sink) AddFilesModified(paths ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := 0
	for _, p := range paths {
		rel, ok := SanitizePath(s.projectRoot, p)
		if !ok {
			s.rejectedPaths++
			continue
		}
		s.filesModified[rel] = struct{}{}
		accepted++
	}
	return accepted
}

// RejectedPaths counts paths dropped for escaping the project root.
func (s *Sink) RejectedPaths() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejectedPaths
}

// ObserveGate records one gate result.
func (s *Sink) ObserveGate(r models.GateResult) {
	s.gateScore.WithLabelValues(r.Gate).Set(r.Score)
	s.gateDuration.WithLabelValues(r.Gate).Observe(r.Duration.Seconds())
	outcome := string(r.Outcome)
	if outcome == "" {
		outcome = string(models.OutcomeOK)
	}
	s.gateOutcomes.WithLabelValues(r.Gate, outcome).Inc()
}

// ObserveIteration records an aggregated iteration score.
func (s *Sink) ObserveIteration(score float64) {
	s.iterationScore.Set(score)
	s.iterationsTotal.Inc()
}

// Registry exposes the run's prometheus registry.
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

// Report snapshots the counters into the end-of-run summary.
func (s *Sink) Report(iterations int, now time.Time) models.MetricsReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make([]string, 0, len(s.filesModified))
	for f := range s.filesModified {
		files = append(files, f)
	}
	sort.Strings(files)

	return models.MetricsReport{
		RunID:            s.runID,
		WorkItemID:       s.workItemID,
		StartTime:        s.startTime,
		DurationMs:       now.Sub(s.startTime).Milliseconds(),
		Iterations:       iterations,
		APICalls:         s.apiCalls,
		IssuesCreated:    s.issuesCreated,
		AutoFixesApplied: s.autoFixes,
		FilesModified:    files,
	}
}

// WriteReport writes report as indented JSON.
func WriteReport(path string, report models.MetricsReport) error {
	if err := filelock.WriteJSON(path, report); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// WriteTextfile exports the registry in the node-exporter textfile format.
func (s *Sink) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("write prometheus textfile: %w", err)
	}
	return nil
}

// SanitizePath resolves p against root and returns it relative to root.
// It reports false for paths that escape root.
func SanitizePath(root, p string) (string, bool) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", false
	}
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(absRoot, p)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(absRoot, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
