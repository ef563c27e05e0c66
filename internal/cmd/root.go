package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// Exit codes besides 0 (success) and 1 (error).
const (
	ExitBlocked     = 2
	ExitInterrupted = 130
)

// ExitError carries a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v (exit %d)", e.Err, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewRootCommand creates and returns the root cobra command for ralph
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ralph",
		Short: "Autonomous implement, verify and iterate runner",
		Long: `Ralph takes an issue from the tracker, has a capability provider
implement it, then runs weighted verification gates in tiers until the
aggregated score reaches the target, the run is blocked by failing
required gates, or the iteration budget is spent.

Progress is reported on the issue after every iteration, serious findings
of advisory gates become sub-issues, and a pull request is opened when the
run succeeds.`,
		Version: Version,
		// main prints the error; silence cobra's copy and the usage text
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
