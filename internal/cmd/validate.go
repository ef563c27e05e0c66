package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/ralph/internal/platform"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and print the gate plan",
		Long: `Load .ralph/config.yaml (or --config), apply --preset, and check:
  - Scores, weights and tiers are in range
  - Providers and routing refer to configured providers
  - The branch pattern never produces a protected branch
  - Safety limits and forbidden operations are known

Warnings (unreachable target, required gates with no weight) are printed
but do not fail validation.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.NoArgs,
		RunE: validateCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .ralph/config.yaml)")
	cmd.Flags().String("preset", "", "Configuration preset to apply")
	cmd.Flags().String("issue", "", "Issue number used to render the branch name")
	cmd.Flags().Bool("supervised", false, "Show the supervised pause as the iteration delay")

	return cmd
}

func validateCommand(cmd *cobra.Command, args []string) error {
	issueID, _ := cmd.Flags().GetString("issue")
	if issueID != "" {
		if err := platform.ValidateIssueID(issueID); err != nil {
			return err
		}
	}

	cfg, preset, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	printWarnings(cmd.ErrOrStderr(), cfg)

	supervised, _ := cmd.Flags().GetBool("supervised")
	plan := buildPlan(cfg, issueID, preset, supervised)
	plan.Footer = fmt.Sprintf("Configuration is valid (best reachable score %g)", cfg.MaxReachableScore())
	plan.Display(cmd.OutOrStdout())
	return nil
}
