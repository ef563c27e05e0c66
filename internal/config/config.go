// Package config loads .ralph/config.yaml and turns it into the settings
// of one run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/provider"
	"github.com/harrison/ralph/internal/score"
	"github.com/harrison/ralph/internal/telemetry"
)

// ValidPresets lists the preset names accepted by --preset.
var ValidPresets = []string{"default", "production", "prototype", "frontend"}

// GateConfig configures one verification gate.
type GateConfig struct {
	// Weight is the gate's share of the score. 0 marks an advisory gate
	Weight float64 `yaml:"weight"`

	// Required gates block later tiers when they score below the pass threshold
	Required bool `yaml:"required"`

	// AutoFix lets the gate modify the workspace
	AutoFix bool `yaml:"auto_fix"`

	// Tier groups gates that run concurrently; lower tiers run first
	Tier int `yaml:"tier"`

	Description string   `yaml:"description,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
	Tools       []string `yaml:"tools,omitempty"`
	Prompt      string   `yaml:"prompt,omitempty"`

	// Disabled removes the gate from the run (useful in presets)
	Disabled bool `yaml:"disabled,omitempty"`
}

// Preset overrides part of the configuration when selected with --preset.
// Gates listed in a preset replace the gate of the same name.
type Preset struct {
	TargetScore    *float64              `yaml:"target_score"`
	MaxIterations  *int                  `yaml:"max_iterations"`
	IterationDelay *Duration             `yaml:"iteration_delay"`
	Gates          map[string]GateConfig `yaml:"gates"`
}

// CircuitBreakerConfig configures the provider circuit breaker.
type CircuitBreakerConfig struct {
	Threshold int      `yaml:"threshold"`
	Cooldown  Duration `yaml:"cooldown"`
}

// SafetyConfig holds the run's hard limits.
type SafetyConfig struct {
	MaxAPICallsPerHour     int                  `yaml:"max_api_calls_per_hour"`
	MaxIssuesCreatedPerRun int                  `yaml:"max_issues_created_per_run"`
	Forbidden              []string             `yaml:"forbidden"`
	CircuitBreaker         CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ScoringConfig mirrors score.Policy.
type ScoringConfig struct {
	PassThreshold float64       `yaml:"pass_threshold"`
	MaxScore      float64       `yaml:"max_score"`
	Bonuses       []score.Bonus `yaml:"bonuses"`
}

// ProviderConfig configures one capability provider.
type ProviderConfig struct {
	Name         string `yaml:"name"`
	Command      string `yaml:"command,omitempty"`
	Model        string `yaml:"model,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	APIKeyEnv    string `yaml:"api_key_env,omitempty"`
	AuthTokenEnv string `yaml:"auth_token_env,omitempty"`
}

// GitConfig holds branch naming and commit hygiene rules.
type GitConfig struct {
	BaseBranch        string   `yaml:"base_branch"`
	BranchPattern     string   `yaml:"branch_pattern"`
	ProtectedBranches []string `yaml:"protected_branches"`
	ForbiddenPatterns []string `yaml:"forbidden_patterns"`
}

// PlatformConfig selects the issue tracker backend.
type PlatformConfig struct {
	Kind              string  `yaml:"kind"`
	Repo              string  `yaml:"repo"`
	TokenEnv          string  `yaml:"token_env"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BaseURL           string  `yaml:"base_url,omitempty"`
}

// Config represents ralph configuration options
type Config struct {
	// TargetScore ends the run with a pull request once reached
	TargetScore float64 `yaml:"target_score"`

	// MaxIterations bounds the verify/fix loop
	MaxIterations int `yaml:"max_iterations"`

	// IterationDelay is the pause between iterations
	IterationDelay Duration `yaml:"iteration_delay"`

	// SupervisedPause replaces IterationDelay in supervised mode
	SupervisedPause Duration `yaml:"supervised_pause"`

	// BlockerIterations is the iteration from which failing required gates block the run
	BlockerIterations int `yaml:"blocker_iterations"`

	// FallbackPRScore opens a pull request for exhausted runs whose best score reached it (0 disables)
	FallbackPRScore float64 `yaml:"fallback_pr_score"`

	// MaxIssuesPerGate caps sub-issues escalated per gate and iteration
	MaxIssuesPerGate int `yaml:"max_issues_per_gate"`

	Gates   map[string]GateConfig `yaml:"gates"`
	Presets map[string]Preset     `yaml:"presets"`
	Safety  SafetyConfig          `yaml:"safety"`
	Scoring ScoringConfig         `yaml:"scoring"`

	Providers       []ProviderConfig  `yaml:"providers"`
	Routing         map[string]string `yaml:"routing"`
	DefaultProvider string            `yaml:"default_provider"`

	Git      GitConfig      `yaml:"git"`
	Platform PlatformConfig `yaml:"platform"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written
	LogDir string `yaml:"log_dir"`

	// StateDir holds checkpoints, history, metrics and the audit log (RALPH_HOME or .ralph when empty)
	StateDir string `yaml:"state_dir"`

	Telemetry telemetry.Config `yaml:"telemetry"`
}

// DefaultGates returns the stock gate table.
func DefaultGates() map[string]GateConfig {
	return map[string]GateConfig{
		"test":      {Weight: 25, Required: true, AutoFix: true, Tier: 1, Description: "Test suite passes with coverage"},
		"security":  {Weight: 25, Required: true, AutoFix: true, Tier: 1, Description: "No exploitable vulnerabilities"},
		"build":     {Weight: 15, Required: true, AutoFix: true, Tier: 1, Description: "Project builds cleanly"},
		"review":    {Weight: 20, AutoFix: true, Tier: 2, Description: "Code review"},
		"mentor":    {Weight: 10, Tier: 2, Description: "Maintainability advice"},
		"ux":        {Weight: 5, Tier: 2, Description: "User-facing behavior"},
		"architect": {Weight: 0, Tier: 3, Description: "Architecture notes"},
		"devops":    {Weight: 0, Tier: 3, Description: "Deployment notes"},
	}
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	policy := score.DefaultPolicy()
	return &Config{
		TargetScore:       95,
		MaxIterations:     15,
		IterationDelay:    Duration(5 * time.Second),
		SupervisedPause:   Duration(30 * time.Second),
		BlockerIterations: score.DefaultBlockerIterations,
		FallbackPRScore:   85,
		MaxIssuesPerGate:  3,
		Gates:             DefaultGates(),
		Safety: SafetyConfig{
			MaxAPICallsPerHour:     100,
			MaxIssuesCreatedPerRun: 10,
			Forbidden:              []string{ForbidForcePush, ForbidPushToMain, ForbidAutoMerge},
			CircuitBreaker: CircuitBreakerConfig{
				Threshold: 5,
				Cooldown:  Duration(5 * time.Minute),
			},
		},
		Scoring: ScoringConfig{
			PassThreshold: policy.PassThreshold,
			MaxScore:      policy.MaxScore,
			Bonuses:       policy.Bonuses,
		},
		Git: GitConfig{
			BaseBranch:        "staging",
			BranchPattern:     "feature/%s-implement",
			ProtectedBranches: []string{"main", "master", "staging"},
			ForbiddenPatterns: []string{
				"Co-Authored-By: Claude",
				"Co-Authored-By:.*anthropic",
				"Generated by Claude",
				"AI-generated",
			},
		},
		Platform: PlatformConfig{
			Kind:              "auto",
			RequestsPerSecond: 1,
		},
		LogLevel: "info",
		LogDir:   filepath.Join(".ralph", "logs"),
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// Keys in the file override defaults; gates listed in the file replace the
// default gate of the same name. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .ralph/config.yaml in the specified directory
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".ralph", "config.yaml"))
}

// ApplyPreset applies the named preset. An empty name or "default" is a
// no-op. A valid name the file does not define is reported as not applied.
func (c *Config) ApplyPreset(name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	valid := false
	for _, p := range ValidPresets {
		if p == name {
			valid = true
			break
		}
	}
	if !valid {
		return false, fmt.Errorf("invalid preset %q, valid: %s", name, strings.Join(ValidPresets, ", "))
	}

	preset, ok := c.Presets[name]
	if !ok {
		return false, nil
	}

	if preset.TargetScore != nil {
		c.TargetScore = *preset.TargetScore
	}
	if preset.MaxIterations != nil {
		c.MaxIterations = *preset.MaxIterations
	}
	if preset.IterationDelay != nil {
		c.IterationDelay = *preset.IterationDelay
	}
	if len(preset.Gates) > 0 && c.Gates == nil {
		c.Gates = map[string]GateConfig{}
	}
	for gate, g := range preset.Gates {
		c.Gates[gate] = g
	}
	return true, nil
}

// MergeWithFlags merges CLI flags into the configuration.
// Non-nil flag values override configuration values.
func (c *Config) MergeWithFlags(maxIterations *int, targetScore *float64, logDir *string, logLevel *string) {
	if maxIterations != nil {
		c.MaxIterations = *maxIterations
	}
	if targetScore != nil {
		c.TargetScore = *targetScore
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
}

// GateSpecs returns the enabled gates ordered by tier, then name.
func (c *Config) GateSpecs() []models.GateSpec {
	specs := make([]models.GateSpec, 0, len(c.Gates))
	for name, g := range c.Gates {
		if g.Disabled {
			continue
		}
		specs = append(specs, models.GateSpec{
			Name:        name,
			Description: g.Description,
			Weight:      g.Weight,
			Required:    g.Required,
			AutoFix:     g.AutoFix,
			Tier:        g.Tier,
			Timeout:     g.Timeout.Std(),
			Tools:       g.Tools,
			Prompt:      g.Prompt,
		})
	}
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Tier != specs[j].Tier {
			return specs[i].Tier < specs[j].Tier
		}
		return specs[i].Name < specs[j].Name
	})
	return specs
}

// ScorePolicy returns the scoring policy.
func (c *Config) ScorePolicy() score.Policy {
	return score.Policy{
		PassThreshold: c.Scoring.PassThreshold,
		MaxScore:      c.Scoring.MaxScore,
		Bonuses:       c.Scoring.Bonuses,
	}
}

// ProviderSpecs converts the providers section.
func (c *Config) ProviderSpecs() []provider.Spec {
	specs := make([]provider.Spec, len(c.Providers))
	for i, p := range c.Providers {
		specs[i] = provider.Spec{
			Name:         p.Name,
			Command:      p.Command,
			Model:        p.Model,
			Endpoint:     p.Endpoint,
			APIKeyEnv:    p.APIKeyEnv,
			AuthTokenEnv: p.AuthTokenEnv,
		}
	}
	return specs
}

// BranchName returns the working branch for an issue.
func (c *Config) BranchName(issueID string) string {
	return fmt.Sprintf(c.Git.BranchPattern, issueID)
}

// IsProtected reports whether branch is one of the protected branches.
func (c *Config) IsProtected(branch string) bool {
	for _, b := range c.Git.ProtectedBranches {
		if b == branch {
			return true
		}
	}
	return false
}

// MaxReachableScore is the best score the enabled gates and bonuses can
// produce, capped at the policy's maximum.
func (c *Config) MaxReachableScore() float64 {
	total := 0.0
	enabled := map[string]bool{}
	for name, g := range c.Gates {
		if !g.Disabled {
			total += g.Weight
			enabled[name] = true
		}
	}
	for _, b := range c.Scoring.Bonuses {
		if enabled[b.Gate] {
			total += b.Points
		}
	}
	if c.Scoring.MaxScore > 0 && total > c.Scoring.MaxScore {
		return c.Scoring.MaxScore
	}
	return total
}
