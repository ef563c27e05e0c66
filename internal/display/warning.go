package display

import (
	"fmt"
	"io"
	"strings"
)

// Warning is a user-facing warning block.
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Items      []string // Gates, files or settings involved (optional)
	Suggestion string   // Action to take (optional)
}

// Display writes the warning in yellow.
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("\x1b[33m")
	b.WriteString("⚠️  Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	for i, item := range w.Items {
		fmt.Fprintf(&b, "      %d. %s\n", i+1, item)
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion: ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	b.WriteString("\x1b[0m")
	fmt.Fprint(out, b.String())
}

// WarnBlocked builds the warning shown when required gates block a run.
func WarnBlocked(iterations int, gates []string) Warning {
	items := make([]string, len(gates))
	for i, g := range gates {
		items[i] = "/" + g
	}
	return Warning{
		Title:      "Run blocked",
		Message:    fmt.Sprintf("Required gates still failing after %d iterations:", iterations),
		Items:      items,
		Suggestion: "Comment @resume on the issue to retry",
	}
}
