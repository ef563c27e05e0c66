package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/provider"
)

// Evaluation is the structured result a provider reports for one gate.
type Evaluation struct {
	Score         float64
	Findings      []models.Finding
	FixedCount    int
	FilesModified []string
}

var errNoObject = errors.New("no JSON object in provider output")

// ParseEvaluation extracts an Evaluation from provider output. It accepts a
// fenced JSON block or the first top-level object in free text, "issues" or
// "findings", and "fixed_count" or a "fixed" list. A score is required.
func ParseEvaluation(output string) (Evaluation, error) {
	obj, ok := provider.ExtractJSON(output)
	if !ok {
		return Evaluation{}, errNoObject
	}

	var raw struct {
		Score         json.RawMessage   `json:"score"`
		Issues        []models.Finding  `json:"issues"`
		Findings      []models.Finding  `json:"findings"`
		FixedCount    *int              `json:"fixed_count"`
		Fixed         []json.RawMessage `json:"fixed"`
		FilesModified []string          `json:"files_modified"`
	}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return Evaluation{}, fmt.Errorf("decode result: %w", err)
	}

	score, err := parseScore(raw.Score)
	if err != nil {
		return Evaluation{}, err
	}

	ev := Evaluation{Score: score, FilesModified: raw.FilesModified}

	ev.Findings = raw.Issues
	if len(ev.Findings) == 0 {
		ev.Findings = raw.Findings
	}

	switch {
	case raw.FixedCount != nil:
		ev.FixedCount = *raw.FixedCount
	default:
		ev.FixedCount = len(raw.Fixed)
	}
	return ev, nil
}

func parseScore(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, errors.New("result has no score")
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("score %s is not a finite number", s)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("score %s is not a number", s)
}
