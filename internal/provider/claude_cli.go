package provider

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/ralph/internal/budget"
)

// readOnlyDeny is added to the deny list of calls that may not edit.
var readOnlyDeny = []string{"Edit", "MultiEdit", "NotebookEdit", "Write"}

// cliSettings disables user hooks and the co-author commit trailer.
const cliSettings = `{"disableAllHooks": true, "includeCoAuthoredBy": false}`

// ClaudeCLI evaluates requests by running the claude CLI in print mode.
// It follows the http.Client pattern: create once, use many times.
type ClaudeCLI struct {
	// Path is the claude binary. Defaults to "claude" (found in PATH).
	Path string

	// Model is passed through --model when set.
	Model string

	// TmpDir replaces TMPDIR for the child process. Editor socket files in the
	// default temp dir crash the CLI when --settings is used.
	TmpDir string
}

// NewClaudeCLI creates a backend for spec.
func NewClaudeCLI(spec Spec) *ClaudeCLI {
	path := spec.Command
	if path == "" {
		path = "claude"
	}
	return &ClaudeCLI{
		Path:   path,
		Model:  spec.Model,
		TmpDir: filepath.Join(os.TempDir(), "ralph-provider"),
	}
}

// Evaluate runs one CLI invocation. The child environment is built from the
// process environment plus req.Exec overrides; the process env is never
// modified.
func (c *ClaudeCLI) Evaluate(ctx context.Context, req Request) (*Response, error) {
	args, err := c.buildArgs(req)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Env = req.Exec.Environ(c.baseEnv())

	output, err := cmd.CombinedOutput()
	if err != nil {
		if limit := budget.DetectProviderLimit(string(output), time.Now()); limit != nil {
			return nil, &LimitError{Limit: limit}
		}
		return nil, fmt.Errorf("claude invocation failed: %w (output: %s)", err, truncate(string(output), 500))
	}

	env := ParseEnvelope(output)
	if env.IsError {
		if limit := budget.DetectProviderLimit(env.Output, time.Now()); limit != nil {
			return nil, &LimitError{Limit: limit}
		}
		return nil, fmt.Errorf("claude reported an error: %s", truncate(env.Output, 500))
	}

	return &Response{Output: env.Output, SessionID: env.SessionID}, nil
}

func (c *ClaudeCLI) buildArgs(req Request) ([]string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	args := []string{}
	if req.SessionID != "" {
		args = append(args, "--resume", req.SessionID)
	}
	args = append(args, "-p", req.Prompt, "--output-format", "json")

	if len(req.Tools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.Tools, ","))
	}

	deny := req.DisallowedTools
	if req.AllowEdits {
		args = append(args, "--permission-mode", "acceptEdits")
	} else {
		args = append(args, "--permission-mode", "default")
		deny = append(append([]string{}, deny...), readOnlyDeny...)
	}
	if len(deny) > 0 {
		args = append(args, "--disallowedTools")
		args = append(args, deny...)
	}

	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}

	args = append(args, "--settings", cliSettings)
	return args, nil
}

func (c *ClaudeCLI) baseEnv() []string {
	base := os.Environ()
	if c.TmpDir == "" {
		return base
	}
	if err := os.MkdirAll(c.TmpDir, 0755); err != nil {
		return base
	}
	return NewExecutionContext("", map[string]string{"TMPDIR": c.TmpDir}).Environ(base)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
