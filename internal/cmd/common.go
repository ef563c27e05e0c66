package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/ralph/internal/config"
	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/gate"
)

// loadConfig reads --config (default .ralph/config.yaml under the working
// directory) and applies --preset. It returns the preset actually applied.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	presetName, _ := cmd.Flags().GetString("preset")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
	}

	applied, err := cfg.ApplyPreset(presetName)
	if err != nil {
		return nil, "", err
	}
	if presetName != "" && presetName != "default" && !applied {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: preset %q is not defined in the config file, using defaults\n", presetName)
		presetName = ""
	}
	return cfg, presetName, nil
}

// printWarnings shows non-fatal configuration findings.
func printWarnings(w io.Writer, cfg *config.Config) {
	warnings := cfg.Warnings()
	if len(warnings) == 0 {
		return
	}
	display.Warning{
		Title:      "Configuration warnings",
		Items:      warnings,
		Suggestion: "Review .ralph/config.yaml",
	}.Display(w)
}

// buildPlan describes what a run of issueID would do.
func buildPlan(cfg *config.Config, issueID, preset string, supervised bool) display.Plan {
	p := display.Plan{
		IssueID:       issueID,
		Preset:        preset,
		Target:        cfg.TargetScore,
		MaxIterations: cfg.MaxIterations,
		Delay:         cfg.IterationDelay.String(),
	}
	if supervised {
		p.Delay = cfg.SupervisedPause.String() + " (supervised)"
	}
	if issueID != "" {
		p.Branch = cfg.BranchName(issueID)
		p.BaseBranch = cfg.Git.BaseBranch
	}

	for _, prov := range cfg.Providers {
		p.Providers = append(p.Providers, prov.Name)
	}
	if len(p.Providers) == 0 {
		p.Providers = []string{defaultProviderName + " (default)"}
	}

	for _, t := range gate.Tiers(cfg.GateSpecs()) {
		pt := display.PlanTier{Number: t.Number, Gates: t.Names()}
		for _, g := range t.Gates {
			if g.Required {
				pt.Required = append(pt.Required, g.Name)
			}
		}
		p.Tiers = append(p.Tiers, pt)
	}
	return p
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
