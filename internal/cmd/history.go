package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/ralph/internal/history"
	"github.com/harrison/ralph/internal/platform"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history --issue <id>",
		Short: "Show recorded iterations of an issue",
		Long: `List every recorded iteration of an issue across runs, with the
score of each gate, followed by how often each gate failed.

Examples:
  ralph history --issue 42
  ralph history --issue 42 --gates=false`,
		Args: cobra.NoArgs,
		RunE: historyCommand,
	}

	cmd.Flags().String("issue", "", "Issue number (required)")
	cmd.Flags().Bool("gates", true, "Show per-gate rows")
	cmd.Flags().String("config", "", "Path to config file (default: .ralph/config.yaml)")

	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	issueID, _ := cmd.Flags().GetString("issue")
	if issueID == "" {
		return fmt.Errorf("--issue is required")
	}
	if err := platform.ValidateIssueID(issueID); err != nil {
		return err
	}
	showGates, _ := cmd.Flags().GetBool("gates")

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stateDir, err := cfg.ResolveStateDir(workingDir())
	if err != nil {
		return err
	}

	store, err := history.NewStore(filepath.Join(stateDir, historyFile))
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	iterations, err := store.Iterations(ctx, issueID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(iterations) == 0 {
		fmt.Fprintf(out, "No history for issue #%s\n", issueID)
		return nil
	}

	runID := ""
	for _, it := range iterations {
		if it.RunID != runID {
			runID = it.RunID
			best, err := store.BestScore(ctx, runID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run %s (best %g)\n", runID, best)
		}
		fmt.Fprintf(out, "  Iteration %d: %g/%g %s (%s, %d API calls)\n",
			it.Iteration, it.Score, it.TargetScore, it.Verdict, it.Duration.Round(100*time.Millisecond), it.APICalls)
		if !showGates {
			continue
		}
		for _, g := range it.Gates {
			status := "PASS"
			switch {
			case g.MaxScore == 0:
				status = "INFO"
			case !g.Passed:
				status = "FAIL"
			}
			fmt.Fprintf(out, "    /%-10s %g/%g %s (%s, %d findings)\n", g.Gate, g.Score, g.MaxScore, status, g.Outcome, g.FindingsCount)
		}
	}

	failures, err := store.GateFailureCounts(ctx, issueID)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		gates := make([]string, 0, len(failures))
		for g := range failures {
			gates = append(gates, g)
		}
		sort.Strings(gates)
		fmt.Fprintln(out, "Gate failures:")
		for _, g := range gates {
			fmt.Fprintf(out, "  /%s: %d\n", g, failures[g])
		}
	}
	return nil
}
