package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/harrison/ralph/internal/platform"
)

// ImplementGate is the provider route name of the implementation phase.
// It cannot be used as a gate name.
const ImplementGate = "implement"

var gateNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

var knownForbidden = map[string]bool{
	ForbidForcePush:  true,
	ForbidPushToMain: true,
	ForbidAutoMerge:  true,
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid configuration: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid configuration (%d problems):\n  - %s", len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

func (e *ValidationError) addf(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate validates the configuration values.
// Returns a *ValidationError listing every invalid value, or nil.
func (c *Config) Validate() error {
	v := &ValidationError{}

	maxScore := c.Scoring.MaxScore
	if maxScore <= 0 {
		v.addf("scoring.max_score must be > 0, got %g", maxScore)
		maxScore = 100
	}
	if c.Scoring.PassThreshold <= 0 || c.Scoring.PassThreshold > 1 {
		v.addf("scoring.pass_threshold must be in (0, 1], got %g", c.Scoring.PassThreshold)
	}

	if c.TargetScore < 0 || c.TargetScore > maxScore {
		v.addf("target_score must be 0-%g, got %g", maxScore, c.TargetScore)
	}
	if c.MaxIterations < 1 {
		v.addf("max_iterations must be >= 1, got %d", c.MaxIterations)
	}
	if c.IterationDelay < 0 {
		v.addf("iteration_delay must be >= 0, got %s", c.IterationDelay)
	}
	if c.SupervisedPause < 0 {
		v.addf("supervised_pause must be >= 0, got %s", c.SupervisedPause)
	}
	if c.BlockerIterations < 1 {
		v.addf("blocker_iterations must be >= 1, got %d", c.BlockerIterations)
	}
	if c.FallbackPRScore < 0 || c.FallbackPRScore > maxScore {
		v.addf("fallback_pr_score must be 0-%g, got %g", maxScore, c.FallbackPRScore)
	}
	if c.MaxIssuesPerGate < 0 {
		v.addf("max_issues_per_gate must be >= 0, got %d", c.MaxIssuesPerGate)
	}

	c.validateGates(v)
	c.validateSafety(v)
	c.validateProviders(v)
	c.validateGit(v)

	switch c.Platform.Kind {
	case platform.KindAuto, platform.KindGH, platform.KindGitHub:
	default:
		v.addf("platform.kind must be one of: %s, %s, %s, got %q", platform.KindAuto, platform.KindGH, platform.KindGitHub, c.Platform.Kind)
	}
	if c.Platform.RequestsPerSecond < 0 {
		v.addf("platform.requests_per_second must be >= 0, got %g", c.Platform.RequestsPerSecond)
	}
	if c.Platform.Repo != "" && strings.Count(c.Platform.Repo, "/") != 1 {
		v.addf("platform.repo must look like owner/name, got %q", c.Platform.Repo)
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		v.addf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if len(v.Problems) == 0 {
		return nil
	}
	return v
}

func (c *Config) validateGates(v *ValidationError) {
	enabled := 0
	for _, name := range sortedKeys(c.Gates) {
		g := c.Gates[name]
		if !gateNamePattern.MatchString(name) {
			v.addf("gate name %q must be lowercase letters, digits, '-' or '_'", name)
		}
		if name == ImplementGate {
			v.addf("gate name %q is reserved", name)
		}
		if g.Weight < 0 {
			v.addf("gates.%s.weight must be >= 0, got %g", name, g.Weight)
		}
		if g.Tier < 0 {
			v.addf("gates.%s.tier must be >= 0, got %d", name, g.Tier)
		}
		if g.Timeout < 0 {
			v.addf("gates.%s.timeout must be >= 0, got %s", name, g.Timeout)
		}
		if !g.Disabled {
			enabled++
		}
	}
	if enabled == 0 {
		v.addf("at least one gate must be enabled")
	}

	for i, b := range c.Scoring.Bonuses {
		if _, ok := c.Gates[b.Gate]; !ok {
			v.addf("scoring.bonuses[%d]: unknown gate %q", i, b.Gate)
		}
		if !b.When.Valid() {
			v.addf("scoring.bonuses[%d]: unknown condition %q", i, b.When)
		}
		if b.Points < 0 {
			v.addf("scoring.bonuses[%d]: points must be >= 0, got %g", i, b.Points)
		}
	}

	for _, name := range sortedKeys(c.Presets) {
		valid := false
		for _, p := range ValidPresets {
			if p == name {
				valid = true
			}
		}
		if !valid {
			v.addf("presets.%s: unknown preset, valid: %s", name, strings.Join(ValidPresets, ", "))
		}
	}
}

func (c *Config) validateSafety(v *ValidationError) {
	s := c.Safety
	if s.MaxAPICallsPerHour < 1 {
		v.addf("safety.max_api_calls_per_hour must be >= 1, got %d", s.MaxAPICallsPerHour)
	}
	if s.MaxIssuesCreatedPerRun < 0 {
		v.addf("safety.max_issues_created_per_run must be >= 0, got %d", s.MaxIssuesCreatedPerRun)
	}
	for _, f := range s.Forbidden {
		if !knownForbidden[f] {
			v.addf("safety.forbidden: unknown operation %q", f)
		}
	}
	if s.CircuitBreaker.Threshold < 1 {
		v.addf("safety.circuit_breaker.threshold must be >= 1, got %d", s.CircuitBreaker.Threshold)
	}
	if s.CircuitBreaker.Cooldown <= 0 {
		v.addf("safety.circuit_breaker.cooldown must be > 0, got %s", s.CircuitBreaker.Cooldown)
	}
}

func (c *Config) validateProviders(v *ValidationError) {
	names := map[string]bool{}
	for i, p := range c.Providers {
		if p.Name == "" {
			v.addf("providers[%d]: name is required", i)
			continue
		}
		if names[p.Name] {
			v.addf("providers[%d]: duplicate name %q", i, p.Name)
		}
		names[p.Name] = true
	}

	if len(c.Providers) == 0 {
		if len(c.Routing) > 0 {
			v.addf("routing requires a providers section")
		}
		if c.DefaultProvider != "" {
			v.addf("default_provider %q requires a providers section", c.DefaultProvider)
		}
		return
	}

	if c.DefaultProvider != "" && !names[c.DefaultProvider] {
		v.addf("default_provider %q is not a configured provider", c.DefaultProvider)
	}
	for _, gate := range sortedKeys(c.Routing) {
		target := c.Routing[gate]
		if _, ok := c.Gates[gate]; !ok && gate != ImplementGate {
			v.addf("routing.%s: unknown gate", gate)
		}
		if !names[target] {
			v.addf("routing.%s: unknown provider %q", gate, target)
		}
	}
}

func (c *Config) validateGit(v *ValidationError) {
	g := c.Git
	if g.BaseBranch == "" {
		v.addf("git.base_branch is required")
	}
	if strings.Count(g.BranchPattern, "%s") != 1 {
		v.addf("git.branch_pattern must contain exactly one %%s, got %q", g.BranchPattern)
		return
	}
	if head := c.BranchName("1"); c.IsProtected(head) {
		v.addf("git.branch_pattern produces protected branch %q", head)
	}
}

// Warnings returns non-fatal observations about a valid configuration.
func (c *Config) Warnings() []string {
	var warnings []string
	if reach := c.MaxReachableScore(); reach < c.TargetScore {
		warnings = append(warnings, fmt.Sprintf("target_score %g is above the best reachable score %g", c.TargetScore, reach))
	}
	if c.FallbackPRScore > c.TargetScore {
		warnings = append(warnings, fmt.Sprintf("fallback_pr_score %g is above target_score %g and never applies", c.FallbackPRScore, c.TargetScore))
	}
	required := 0
	for _, name := range sortedKeys(c.Gates) {
		g := c.Gates[name]
		if g.Required && !g.Disabled {
			required++
			if g.Weight == 0 {
				warnings = append(warnings, fmt.Sprintf("required gate %q has weight 0 and always passes", name))
			}
		}
	}
	if required == 0 {
		warnings = append(warnings, "no required gates: runs can never be blocked")
	}
	return warnings
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
