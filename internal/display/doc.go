// Package display holds the terminal formatting used outside the run
// logger: the dry-run plan, warnings, and active-form status phrases.
//
// # Plan
//
//	display.Plan{IssueID: "42", Branch: "feature/42-implement", Target: 95, MaxIterations: 15,
//	    Tiers: []display.PlanTier{{Number: 1, Gates: []string{"build", "security", "test"}}},
//	}.Display(os.Stdout)
//
// # Warnings
//
//	display.Warning{
//	    Title:      "Run blocked",
//	    Items:      []string{"/test", "/build"},
//	    Suggestion: "Comment @resume on the issue to retry",
//	}.Display(os.Stderr)
//
// # Active form
//
//	display.ActiveForm("Fix login bug") // "Fixing login bug"
//
// All output goes to an io.Writer. Colors are raw ANSI escapes.
package display
