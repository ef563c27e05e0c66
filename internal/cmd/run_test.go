package cmd

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCommand_FlagErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")

	tests := []struct {
		name           string
		args           []string
		wantErrContain string
	}{
		{
			name:           "epic not implemented",
			args:           []string{"run", "--epic", "7"},
			wantErrContain: "not yet implemented",
		},
		{
			name:           "issue required",
			args:           []string{"run", "--config", missing},
			wantErrContain: "--issue is required",
		},
		{
			name:           "non-numeric issue",
			args:           []string{"run", "--issue", "42; rm -rf /", "--config", missing},
			wantErrContain: "Must be numeric",
		},
		{
			name:           "unknown preset",
			args:           []string{"run", "--issue", "42", "--preset", "turbo", "--config", missing},
			wantErrContain: "invalid preset",
		},
		{
			name:           "target above max score",
			args:           []string{"run", "--issue", "42", "--target-score", "150", "--dry-run", "--config", missing},
			wantErrContain: "target_score must be 0-100",
		},
		{
			name:           "zero iterations",
			args:           []string{"run", "--issue", "42", "--max-iterations", "0", "--dry-run", "--config", missing},
			wantErrContain: "max_iterations must be >= 1",
		},
		{
			name:           "positional arguments rejected",
			args:           []string{"run", "42"},
			wantErrContain: "unknown command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.args...)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErrContain)
			}
			if !strings.Contains(err.Error(), tt.wantErrContain) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErrContain)
			}
		})
	}
}

func TestRunCommand_DryRun(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")

	output, err := executeCommand(t, "run", "--issue", "42", "--dry-run", "--config", missing)
	if err != nil {
		t.Fatalf("dry run failed: %v\n%s", err, output)
	}

	for _, want := range []string{
		"Issue:          #42",
		"Branch:         feature/42-implement -> staging",
		"Target score:   95",
		"Max iterations: 15",
		"Delay:          5s",
		"Tier 1: build, security, test (required: build, security, test)",
		"Tier 2: mentor, review, ux",
		"Tier 3: architect, devops",
		"Dry run complete",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRunCommand_DryRunWithPresetAndFlags(t *testing.T) {
	cfgPath := writeConfig(t, `
presets:
  prototype:
    target_score: 70
    max_iterations: 4
    iteration_delay: 1s
    gates:
      security:
        weight: 25
        tier: 1
`)

	output, err := executeCommand(t, "run", "--issue", "7", "--dry-run", "--supervised",
		"--config", cfgPath, "--preset", "prototype", "--max-iterations", "3")
	if err != nil {
		t.Fatalf("dry run failed: %v\n%s", err, output)
	}

	for _, want := range []string{
		"Preset:         prototype",
		"Target score:   70",
		"Max iterations: 3",
		"Delay:          30s (supervised)",
		"(required: build, test)",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRunCommand_UndefinedPresetWarns(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")

	output, err := executeCommand(t, "run", "--issue", "42", "--dry-run", "--preset", "frontend", "--config", missing)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !strings.Contains(output, `preset "frontend" is not defined`) {
		t.Errorf("expected undefined preset warning, got:\n%s", output)
	}
	if strings.Contains(output, "Preset:") {
		t.Errorf("undefined preset should not be shown in the plan:\n%s", output)
	}
}
