package platform

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Criterion is one acceptance criterion from an issue body.
type Criterion struct {
	Text string
	Done bool // checked task-list item
	Task bool // written as a task-list item
}

// IssueBody is the structured part of an issue description.
type IssueBody struct {
	AcceptanceCriteria []Criterion
	Tasks              []Criterion // every task-list item in the body
}

var md = goldmark.New(goldmark.WithExtensions(extension.TaskList, extension.Table))

var acceptanceHeading = regexp.MustCompile(`(?i)^acceptance\s+criteria\b`)

// ParseIssueBody extracts the list items under an "Acceptance Criteria"
// heading and every task-list checkbox. When the body has no such heading,
// the task-list items stand in as the criteria.
func ParseIssueBody(body string) IssueBody {
	src := []byte(body)
	doc := md.Parser().Parse(text.NewReader(src))

	var out IssueBody
	inSection := false
	sectionLevel := 0

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(nodeText(node, src))
			switch {
			case acceptanceHeading.MatchString(title):
				inSection = true
				sectionLevel = node.Level
			case inSection && node.Level <= sectionLevel:
				inSection = false
			}
			return ast.WalkSkipChildren, nil

		case *ast.ListItem:
			c := listItemCriterion(node, src)
			if c.Text == "" {
				return ast.WalkContinue, nil
			}
			if c.Task {
				out.Tasks = append(out.Tasks, c)
			}
			if inSection {
				out.AcceptanceCriteria = append(out.AcceptanceCriteria, c)
			}
		}
		return ast.WalkContinue, nil
	})

	if len(out.AcceptanceCriteria) == 0 {
		out.AcceptanceCriteria = append(out.AcceptanceCriteria, out.Tasks...)
	}
	return out
}

// listItemCriterion reads the first block of a list item; nested lists are
// visited as their own items.
func listItemCriterion(item *ast.ListItem, src []byte) Criterion {
	var c Criterion
	block := item.FirstChild()
	if block == nil {
		return c
	}
	if box, ok := block.FirstChild().(*extast.TaskCheckBox); ok {
		c.Task = true
		c.Done = box.IsChecked
	}
	c.Text = strings.TrimSpace(nodeText(block, src))
	return c
}

func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					buf.WriteByte(' ')
				}
			case *ast.String:
				buf.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return buf.String()
}

// FormatCriteria renders criteria as a markdown checklist for prompts.
func FormatCriteria(cs []Criterion) string {
	var b strings.Builder
	for _, c := range cs {
		mark := " "
		if c.Done {
			mark = "x"
		}
		fmt.Fprintf(&b, "- [%s] %s\n", mark, c.Text)
	}
	return b.String()
}

// ReportRow is one parsed row of a progress report's gate table.
type ReportRow struct {
	Gate   string
	Score  string
	Status string
}

var validStatuses = map[string]bool{"PASS": true, "FAIL": true, "INFO": true}

// ValidateReport parses a progress report and checks that its gate table
// has the Gate/Score/Status columns and a valid status for each of the
// expected gates. It returns the parsed rows.
func ValidateReport(report string, gates []string) ([]ReportRow, error) {
	src := []byte(report)
	doc := md.Parser().Parse(text.NewReader(src))

	var table *extast.Table
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*extast.Table); ok && entering && table == nil {
			table = t
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if table == nil {
		return nil, fmt.Errorf("report has no gate table")
	}

	var header []string
	var rows []ReportRow
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, strings.TrimSpace(nodeText(cell, src)))
		}
		if _, ok := row.(*extast.TableHeader); ok {
			header = cells
			continue
		}
		if len(cells) < 3 {
			return nil, fmt.Errorf("gate table row has %d columns, want at least 3", len(cells))
		}
		rows = append(rows, ReportRow{
			Gate:   strings.TrimPrefix(cells[0], "/"),
			Score:  cells[1],
			Status: cells[2],
		})
	}

	if len(header) < 3 || header[0] != "Gate" || header[1] != "Score" || header[2] != "Status" {
		return nil, fmt.Errorf("gate table header %v, want Gate | Score | Status", header)
	}

	seen := map[string]bool{}
	for _, r := range rows {
		if !validStatuses[r.Status] {
			return nil, fmt.Errorf("gate %s has invalid status %q", r.Gate, r.Status)
		}
		seen[r.Gate] = true
	}
	for _, g := range gates {
		if !seen[g] {
			return nil, fmt.Errorf("gate %s missing from report", g)
		}
	}
	return rows, nil
}
