package display

import (
	"fmt"
	"io"
	"strings"
)

// PlanTier is one tier line of a dry-run plan.
type PlanTier struct {
	Number   int
	Gates    []string
	Required []string
}

// Plan is what a run would do, printed by --dry-run and validate.
type Plan struct {
	IssueID       string
	Preset        string
	Branch        string
	BaseBranch    string
	Target        float64
	MaxIterations int
	Delay         string
	Providers     []string
	Tiers         []PlanTier

	// Footer replaces the closing dry-run line when set.
	Footer string
}

// Display writes the plan with each tier as [N/Total].
func (p Plan) Display(w io.Writer) {
	fmt.Fprintf(w, "\x1b[1mRun plan\x1b[0m\n")
	if p.IssueID != "" {
		fmt.Fprintf(w, "  Issue:          #%s\n", p.IssueID)
	}
	if p.Preset != "" {
		fmt.Fprintf(w, "  Preset:         %s\n", p.Preset)
	}
	if p.Branch != "" {
		fmt.Fprintf(w, "  Branch:         %s -> %s\n", p.Branch, p.BaseBranch)
	}
	fmt.Fprintf(w, "  Target score:   %g\n", p.Target)
	fmt.Fprintf(w, "  Max iterations: %d\n", p.MaxIterations)
	if p.Delay != "" {
		fmt.Fprintf(w, "  Delay:          %s\n", p.Delay)
	}
	if len(p.Providers) > 0 {
		fmt.Fprintf(w, "  Providers:      %s\n", strings.Join(p.Providers, ", "))
	}

	fmt.Fprintf(w, "Gate tiers:\n")
	for i, t := range p.Tiers {
		line := fmt.Sprintf("  [%d/%d] Tier %d: %s", i+1, len(p.Tiers), t.Number, strings.Join(t.Gates, ", "))
		if len(t.Required) > 0 {
			line += fmt.Sprintf(" (required: %s)", strings.Join(t.Required, ", "))
		}
		fmt.Fprintf(w, "\x1b[36m%s\x1b[0m\n", line)
	}
	footer := p.Footer
	if footer == "" {
		footer = "Dry run complete, nothing executed"
	}
	fmt.Fprintf(w, "\x1b[32m✓\x1b[0m %s\n", footer)
}
