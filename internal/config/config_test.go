package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/ralph/internal/score"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.TargetScore != 95 {
		t.Errorf("TargetScore = %g, want 95", cfg.TargetScore)
	}
	if cfg.MaxIterations != 15 {
		t.Errorf("MaxIterations = %d, want 15", cfg.MaxIterations)
	}
	if cfg.IterationDelay.Std() != 5*time.Second {
		t.Errorf("IterationDelay = %s, want 5s", cfg.IterationDelay)
	}
	if cfg.SupervisedPause.Std() != 30*time.Second {
		t.Errorf("SupervisedPause = %s, want 30s", cfg.SupervisedPause)
	}
	if cfg.FallbackPRScore != 85 || cfg.BlockerIterations != 5 || cfg.MaxIssuesPerGate != 3 {
		t.Errorf("unexpected thresholds: fallback %g, blocker %d, per-gate %d", cfg.FallbackPRScore, cfg.BlockerIterations, cfg.MaxIssuesPerGate)
	}
	if cfg.Safety.MaxAPICallsPerHour != 100 || cfg.Safety.MaxIssuesCreatedPerRun != 10 {
		t.Errorf("unexpected safety limits: %+v", cfg.Safety)
	}
	if cfg.Git.BaseBranch != "staging" || cfg.BranchName("42") != "feature/42-implement" {
		t.Errorf("unexpected git config: %+v", cfg.Git)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDefaultGateTable(t *testing.T) {
	specs := DefaultConfig().GateSpecs()

	var names []string
	total := 0.0
	for _, s := range specs {
		names = append(names, s.Name)
		total += s.Weight
	}
	want := "build,security,test,mentor,review,ux,architect,devops"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("gate order = %s, want %s", got, want)
	}
	if total != 100 {
		t.Errorf("total weight = %g, want 100", total)
	}

	for _, s := range specs {
		switch s.Name {
		case "test", "security", "build":
			if !s.Required || s.Tier != 1 {
				t.Errorf("%s should be required in tier 1: %+v", s.Name, s)
			}
		case "architect", "devops":
			if !s.Advisory() || s.Tier != 3 {
				t.Errorf("%s should be advisory in tier 3: %+v", s.Name, s)
			}
		}
	}
}

// TestLoadConfigValidFile tests loading a valid YAML config file
func TestLoadConfigValidFile(t *testing.T) {
	path := writeConfig(t, `target_score: 90
max_iterations: 8
iteration_delay: 2
supervised_pause: 1m
log_level: debug
gates:
  test:
    weight: 40
    required: true
    tier: 0
    timeout: 10m
    tools: [Read, Bash]
  lint:
    weight: 5
    tier: 2
git:
  protected_branches: [main]
platform:
  kind: github
  repo: acme/widgets
telemetry:
  endpoint: http://localhost:4318
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.TargetScore != 90 || cfg.MaxIterations != 8 {
		t.Errorf("target/max = %g/%d", cfg.TargetScore, cfg.MaxIterations)
	}
	if cfg.IterationDelay.Std() != 2*time.Second {
		t.Errorf("numeric iteration_delay should be seconds, got %s", cfg.IterationDelay)
	}
	if cfg.SupervisedPause.Std() != time.Minute {
		t.Errorf("SupervisedPause = %s", cfg.SupervisedPause)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}

	test := cfg.Gates["test"]
	if test.Weight != 40 || test.Tier != 0 || test.Timeout.Std() != 10*time.Minute || len(test.Tools) != 2 {
		t.Errorf("test gate not replaced: %+v", test)
	}
	if test.AutoFix {
		t.Error("a gate listed in the file replaces the default entry entirely")
	}
	if _, ok := cfg.Gates["lint"]; !ok {
		t.Error("new gate should be added")
	}
	if _, ok := cfg.Gates["security"]; !ok {
		t.Error("unlisted default gates should be kept")
	}
	if len(cfg.Git.ProtectedBranches) != 1 {
		t.Errorf("protected branches should be replaced, got %v", cfg.Git.ProtectedBranches)
	}
	if cfg.Git.BaseBranch != "staging" {
		t.Errorf("unset git keys keep defaults, got %q", cfg.Git.BaseBranch)
	}
	if cfg.Platform.Kind != "github" || cfg.Platform.Repo != "acme/widgets" || cfg.Platform.RequestsPerSecond != 1 {
		t.Errorf("platform = %+v", cfg.Platform)
	}
	if !cfg.Telemetry.Enabled() {
		t.Error("telemetry endpoint should enable tracing")
	}
}

// TestLoadConfigFileNotExists tests fallback to defaults when file doesn't exist
func TestLoadConfigFileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfig() should not error on missing file, got: %v", err)
	}
	if cfg.TargetScore != 95 {
		t.Errorf("TargetScore = %g, want default 95", cfg.TargetScore)
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.Gates) != 8 {
		t.Errorf("expected default gates, got %d", len(cfg.Gates))
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed yaml", "target_score: [unclosed", "failed to parse"},
		{"unknown key", "target_scor: 90\n", "target_scor"},
		{"bad duration", "iteration_delay: soon\n", "invalid duration"},
		{"duration mapping", "iteration_delay:\n  seconds: 5\n", "duration must be a scalar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".ralph"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".ralph", "config.yaml"), []byte("max_iterations: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromDir(dir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	if cfg.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want 3", cfg.MaxIterations)
	}
}

func TestApplyPreset(t *testing.T) {
	path := writeConfig(t, `presets:
  prototype:
    target_score: 70
    max_iterations: 3
    iteration_delay: 1s
    gates:
      security:
        weight: 25
        tier: 1
      ux:
        disabled: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	applied, err := cfg.ApplyPreset("prototype")
	if err != nil || !applied {
		t.Fatalf("ApplyPreset() = %v, %v", applied, err)
	}
	if cfg.TargetScore != 70 || cfg.MaxIterations != 3 || cfg.IterationDelay.Std() != time.Second {
		t.Errorf("preset scalars not applied: %g %d %s", cfg.TargetScore, cfg.MaxIterations, cfg.IterationDelay)
	}
	if cfg.Gates["security"].Required {
		t.Error("preset gate should replace the default security gate")
	}
	for _, s := range cfg.GateSpecs() {
		if s.Name == "ux" {
			t.Error("disabled gate should not be scheduled")
		}
	}

	applied, err = cfg.ApplyPreset("production")
	if err != nil || applied {
		t.Errorf("undefined valid preset: applied=%v err=%v", applied, err)
	}
	if applied, err := cfg.ApplyPreset(""); applied || err != nil {
		t.Errorf("empty preset: applied=%v err=%v", applied, err)
	}
	if _, err := cfg.ApplyPreset("yolo"); err == nil || !strings.Contains(err.Error(), "invalid preset") {
		t.Errorf("expected invalid preset error, got %v", err)
	}
}

// TestMergeWithFlags verifies non-nil flags override config values
func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	maxIter := 4
	target := 80.0
	logDir := "/tmp/ralph-logs"

	cfg.MergeWithFlags(&maxIter, &target, &logDir, nil)

	if cfg.MaxIterations != 4 || cfg.TargetScore != 80 || cfg.LogDir != logDir {
		t.Errorf("flags not merged: %d %g %q", cfg.MaxIterations, cfg.TargetScore, cfg.LogDir)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("nil flag should keep LogLevel, got %q", cfg.LogLevel)
	}
}

func TestScorePolicyAndProviderSpecs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.Bonuses = []score.Bonus{{Gate: "build", When: score.NoFindings, Points: 1}}
	cfg.Providers = []ProviderConfig{{Name: "alt", Endpoint: "https://alt.example", AuthTokenEnv: "ALT_TOKEN"}}

	policy := cfg.ScorePolicy()
	if policy.PassThreshold != 0.8 || policy.MaxScore != 100 || len(policy.Bonuses) != 1 {
		t.Errorf("ScorePolicy() = %+v", policy)
	}

	specs := cfg.ProviderSpecs()
	if len(specs) != 1 || specs[0].Name != "alt" || specs[0].AuthTokenEnv != "ALT_TOKEN" {
		t.Errorf("ProviderSpecs() = %+v", specs)
	}
}

func TestMaxReachableScore(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.MaxReachableScore(); got != 100 {
		t.Errorf("MaxReachableScore() = %g, want 100 (capped)", got)
	}

	g := cfg.Gates["test"]
	g.Disabled = true
	cfg.Gates["test"] = g
	if got := cfg.MaxReachableScore(); got != 77 {
		t.Errorf("MaxReachableScore() = %g, want 77", got)
	}
}

func TestValidationErrorFormatting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 0
	cfg.TargetScore = 150

	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Problems) != 2 {
		t.Errorf("expected 2 problems, got %v", verr.Problems)
	}
	if !strings.Contains(err.Error(), "2 problems") {
		t.Errorf("Error() = %q", err.Error())
	}
}
