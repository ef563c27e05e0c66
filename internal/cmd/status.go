package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/ralph/internal/checkpoint"
	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/platform"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show saved run checkpoints",
		Long: `Show the checkpoint saved after the last completed iteration of each
run, or of one issue with --issue. --clear discards the checkpoint of
that issue so the next run starts fresh.

Examples:
  ralph status
  ralph status --issue 42
  ralph status --issue 42 --clear`,
		Args: cobra.NoArgs,
		RunE: statusCommand,
	}

	cmd.Flags().String("issue", "", "Only show the checkpoint of this issue")
	cmd.Flags().String("config", "", "Path to config file (default: .ralph/config.yaml)")
	cmd.Flags().Bool("clear", false, "Delete the checkpoint of --issue")

	return cmd
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	stateDir, err := cfg.ResolveStateDir(workingDir())
	if err != nil {
		return err
	}
	store := checkpoint.NewStore(filepath.Join(stateDir, checkpointDir))
	out := cmd.OutOrStdout()

	issueID, _ := cmd.Flags().GetString("issue")
	discard, _ := cmd.Flags().GetBool("clear")
	if discard && issueID == "" {
		return fmt.Errorf("--clear requires --issue")
	}
	if issueID != "" {
		if err := platform.ValidateIssueID(issueID); err != nil {
			return err
		}
		if discard {
			if err := store.Delete(issueID); err != nil {
				return err
			}
			fmt.Fprintf(out, "Cleared checkpoint for issue #%s\n", issueID)
			return nil
		}
		state, err := store.Load(issueID)
		if errors.Is(err, checkpoint.ErrNoCheckpoint) {
			fmt.Fprintf(out, "No checkpoint for issue #%s\n", issueID)
			return nil
		}
		if err != nil {
			return err
		}
		printState(out, *state, time.Now())
		return nil
	}

	states, err := store.List()
	if err != nil {
		return err
	}
	if len(states) == 0 {
		fmt.Fprintf(out, "No checkpoints in %s\n", store.Dir())
		return nil
	}
	for i, s := range states {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printState(out, s, time.Now())
	}
	return nil
}

func printState(w io.Writer, s models.RunState, now time.Time) {
	fmt.Fprintf(w, "Issue #%s\n", s.WorkItemID)
	fmt.Fprintf(w, "  Run:        %s\n", s.RunID)
	fmt.Fprintf(w, "  Iteration:  %d\n", s.Iteration)
	fmt.Fprintf(w, "  Last score: %g\n", s.LastScore)
	if s.SessionToken != "" {
		fmt.Fprintf(w, "  Session:    %s\n", s.SessionToken)
	}
	fmt.Fprintf(w, "  Sub-issues: %s\n", joinOrNone(prefixed("#", s.CreatedIssueIDs)))
	fmt.Fprintf(w, "  Started:    %s\n", s.StartTime.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  Saved:      %s (%s ago)\n", s.LastCheckpointTime.Local().Format(time.DateTime), now.Sub(s.LastCheckpointTime).Round(time.Second))
}

func prefixed(prefix string, items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = prefix + s
	}
	return out
}
