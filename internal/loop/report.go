package loop

import (
	"fmt"
	"strings"

	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/platform"
)

const defaultRecommendation = "Review and address manually."

// ProgressReport renders the comment posted to the work item after each
// iteration. autoFixes and filesModified are run totals.
func ProgressReport(runID string, rec models.IterationRecord, autoFixes, filesModified int) string {
	status := "IN PROGRESS"
	if rec.Score >= rec.TargetScore {
		status = "TARGET REACHED"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Ralph Run - Iteration %d\n\n", rec.Iteration)
	fmt.Fprintf(&b, "**Status:** %s\n", status)
	fmt.Fprintf(&b, "**Score:** %g/%g\n", rec.Score, rec.TargetScore)
	fmt.Fprintf(&b, "**Duration:** %.1fs\n\n", rec.Duration.Seconds())

	b.WriteString("### Quality Gates\n\n")
	writeGateTable(&b, rec.Gates)

	if len(rec.Bonuses) > 0 {
		fmt.Fprintf(&b, "\n**Bonuses:** %s\n", strings.Join(rec.Bonuses, ", "))
	}
	if rec.BlockedTier >= 0 {
		fmt.Fprintf(&b, "\nTiers after %d were skipped: a required gate failed.\n", rec.BlockedTier)
	}

	b.WriteString("\n### Metrics\n")
	fmt.Fprintf(&b, "- API calls: %d\n", rec.APICalls)
	fmt.Fprintf(&b, "- Auto-fixes: %d\n", autoFixes)
	fmt.Fprintf(&b, "- Files modified: %d\n", filesModified)

	fmt.Fprintf(&b, "\n---\n*Run ID: %s | Iteration %d*", runID, rec.Iteration)
	return platform.Truncate(b.String(), platform.MaxCommentLength)
}

func writeGateTable(b *strings.Builder, gates []models.GateResult) {
	b.WriteString("| Gate | Score | Status | Issues |\n")
	b.WriteString("|------|-------|--------|--------|\n")
	for _, g := range gates {
		fmt.Fprintf(b, "| /%s | %g/%g | %s | %d issues |\n", g.Gate, g.Score, g.MaxScore, g.Status(), len(g.Findings))
	}
}

// BlockedComment renders the notice posted when required gates keep failing.
func BlockedComment(gates []string) string {
	refs := make([]string, len(gates))
	for i, g := range gates {
		refs[i] = "/" + g
	}
	return fmt.Sprintf("## BLOCKED\n\nRequired gates failed: %s\n\nComment `@resume` to retry.", strings.Join(refs, ", "))
}

// SubIssue builds the sub-issue filed for an escalated finding. Text
// coming from the provider is stripped of the forbidden patterns.
func SubIssue(parentID, gate string, f models.Finding, forbidden []string) platform.IssueRequest {
	clean := func(s string) string {
		return platform.StripAttribution(s, forbidden)
	}

	title := fmt.Sprintf("[%s] %s", strings.ToUpper(gate), strings.TrimSpace(platform.Sanitize(clean(f.Title))))
	title = platform.Truncate(title, platform.MaxTitleLength)

	file := f.File
	if file == "" {
		file = "N/A"
	} else if f.Line > 0 {
		file = fmt.Sprintf("%s:%d", file, f.Line)
	}
	autoFix := "No"
	if f.AutoFixable {
		autoFix = "Yes"
	}
	rec := f.Recommendation
	if strings.TrimSpace(rec) == "" {
		rec = defaultRecommendation
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s: %s\n\n", strings.ToUpper(string(f.Severity)), clean(f.Title))
	fmt.Fprintf(&b, "**Found by:** `/%s` gate\n", gate)
	fmt.Fprintf(&b, "**File:** %s\n", file)
	fmt.Fprintf(&b, "**Auto-fixable:** %s\n\n", autoFix)
	fmt.Fprintf(&b, "### Description\n%s\n\n", platform.Truncate(clean(f.Description), platform.MaxSectionLength))
	fmt.Fprintf(&b, "### Recommendation\n%s\n\n", platform.Truncate(clean(rec), platform.MaxSectionLength))
	b.WriteString("---\n*Auto-generated by the ralph runner*\n")

	return platform.IssueRequest{
		Title:     title,
		Body:      b.String(),
		Labels:    []string{"auto-generated", gate, string(f.Severity)},
		ParentRef: parentID,
	}
}

// PullRequest builds the pull request opened at the end of a run.
func PullRequest(issueID, head, base string, summary models.RunSummary, last models.IterationRecord, forbidden []string) platform.PRRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "Implements #%s\n\n", issueID)
	fmt.Fprintf(&b, "**Final score:** %g/%g (best %g, %d iterations)\n\n", summary.FinalScore, summary.TargetScore, summary.BestScore, summary.Iterations)
	b.WriteString("### Quality Gates\n\n")
	writeGateTable(&b, last.Gates)
	fmt.Fprintf(&b, "\nCloses #%s\n", issueID)

	return platform.PRRequest{
		Title:        fmt.Sprintf("feat: implement #%s", issueID),
		Body:         platform.StripAttribution(b.String(), forbidden),
		SourceBranch: head,
		TargetBranch: base,
	}
}

// ImplementPrompt builds the implementation-phase prompt for issue.
func ImplementPrompt(issue *platform.Issue, issueID, branch, base string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are starting an autonomous development session for issue #%s.\n\n", issueID)
	fmt.Fprintf(&b, "TITLE: %s\n\n", issue.Title)
	if body := strings.TrimSpace(issue.Body); body != "" {
		fmt.Fprintf(&b, "DESCRIPTION:\n%s\n\n", body)
	}
	if criteria := platform.ParseIssueBody(issue.Body).AcceptanceCriteria; len(criteria) > 0 {
		fmt.Fprintf(&b, "ACCEPTANCE CRITERIA:\n%s\n", platform.FormatCriteria(criteria))
	}
	b.WriteString("STEPS:\n")
	fmt.Fprintf(&b, "1. Create feature branch: %s\n", branch)
	b.WriteString("2. Implement the feature/fix\n")
	b.WriteString("3. Commit with format: \"feat: description\" or \"fix: description\"\n\n")
	b.WriteString("RULES:\n")
	fmt.Fprintf(&b, "- NEVER push directly to %s or any protected branch\n", base)
	b.WriteString("- NEVER add AI attribution trailers to commits\n")
	b.WriteString("- Keep commits atomic and focused\n")
	return b.String()
}
