// Package logger provides the run loggers for ralph.
//
// ConsoleLogger writes colored progress to a terminal, FileLogger keeps a
// per-run log under the state directory, and AuditLog appends one JSON line
// per provider call. Every logger is safe for concurrent use since gate
// results of a tier arrive in parallel.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/ralph/internal/models"
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is enabled automatically when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive); anything
// else means "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// SetColor forces color output on or off.
func (cl *ConsoleLogger) SetColor(enabled bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.colorOutput = enabled
}

// isTerminal reports whether w is a TTY that should receive colors.
// NO_COLOR (via fatih/color) always wins.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return cl.writer != nil && enabled(cl.logLevel, messageLevel)
}

// write emits lines, each prefixed with the current timestamp.
func (cl *ConsoleLogger) write(lines ...string) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var b strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&b, "[%s] %s\n", ts, line)
	}
	cl.writer.Write([]byte(b.String()))
}

func (cl *ConsoleLogger) paint(attr color.Attribute, s string) string {
	if !cl.colorOutput {
		return s
	}
	return color.New(attr).Sprint(s)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level, message string) {
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	label := level
	if cl.colorOutput {
		switch level {
		case "TRACE":
			label = color.New(color.FgHiBlack).Sprint(level)
		case "DEBUG":
			label = color.New(color.FgCyan).Sprint(level)
		case "INFO":
			label = color.New(color.FgBlue).Sprint(level)
		case "WARN":
			label = color.New(color.FgYellow).Sprint(level)
		case "ERROR":
			label = color.New(color.FgRed).Sprint(level)
		}
	}
	cl.write(fmt.Sprintf("[%s] %s", label, message))
}

// LogPhase marks the start of a run phase (implement, verify, finalize).
// Format: "[HH:MM:SS] ▶ Phase: <phase>"
func (cl *ConsoleLogger) LogPhase(phase string) {
	if !cl.shouldLog("info") {
		return
	}
	cl.write("▶ Phase: " + cl.paint(color.Bold, phase))
}

// LogIterationStart logs the iteration header.
// Format: "[HH:MM:SS] === Iteration <n>/<max> ==="
func (cl *ConsoleLogger) LogIterationStart(iteration, maxIterations int) {
	if !cl.shouldLog("info") {
		return
	}
	cl.write(cl.paint(color.Bold, fmt.Sprintf("=== Iteration %d/%d ===", iteration, maxIterations)))
}

// LogTierStart logs the gates about to run in a tier.
// Format: "[HH:MM:SS] Tier <n>: running /a, /b"
func (cl *ConsoleLogger) LogTierStart(tier int, gates []string) {
	if !cl.shouldLog("info") {
		return
	}
	cl.write(fmt.Sprintf("%s: running %s", cl.paint(color.Bold, fmt.Sprintf("Tier %d", tier)), gateList(gates)))
}

// LogTierComplete logs the tier duration and pass/fail counts.
// Format: "[HH:MM:SS] Tier <n> complete (<duration>): <p> passed, <f> failed"
func (cl *ConsoleLogger) LogTierComplete(tier int, results []models.GateResult, duration time.Duration) {
	if !cl.shouldLog("info") {
		return
	}

	passed, failed := 0, 0
	for _, r := range results {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}

	failedText := fmt.Sprintf("%d failed", failed)
	if failed > 0 {
		failedText = cl.paint(color.FgRed, failedText)
	}
	cl.write(fmt.Sprintf("Tier %d %s (%s): %s, %s",
		tier, cl.paint(color.FgGreen, "complete"), formatDuration(duration),
		cl.paint(color.FgGreen, fmt.Sprintf("%d passed", passed)), failedText))
}

// LogGateResult logs one gate's score and status.
// Format: "[HH:MM:SS]   /<gate> <score>/<max> <STATUS> (<duration>) - <n> findings"
func (cl *ConsoleLogger) LogGateResult(result models.GateResult) {
	if !cl.shouldLog("info") {
		return
	}

	status := result.Status()
	switch status {
	case "PASS":
		status = cl.paint(color.FgGreen, status)
	case "FAIL":
		status = cl.paint(color.FgRed, status)
	default:
		status = cl.paint(color.FgCyan, status)
	}

	line := fmt.Sprintf("  /%s %g/%g %s (%s)", result.Gate, result.Score, result.MaxScore, status, formatDuration(result.Duration))
	if n := len(result.Findings); n > 0 {
		line += fmt.Sprintf(" - %d findings", n)
	}
	if result.Outcome != "" && result.Outcome != models.OutcomeOK {
		line += " " + cl.paint(color.FgYellow, fmt.Sprintf("[%s]", result.Outcome))
	}
	if result.Error != "" {
		line += ": " + result.Error
	}
	cl.write(line)
}

// LogIterationComplete logs the aggregated score and the verdict.
// Format: "[HH:MM:SS] Score: [=====     ] 52/95 (54%) - continue"
func (cl *ConsoleLogger) LogIterationComplete(record models.IterationRecord) {
	if !cl.shouldLog("info") {
		return
	}

	pb := NewProgressBar(record.TargetScore, 20, cl.colorOutput)
	pb.SetPrefix("Score: ")
	pb.Update(record.Score)

	verdict := string(record.Verdict)
	switch record.Verdict {
	case models.VerdictReached:
		verdict = cl.paint(color.FgGreen, verdict)
	case models.VerdictBlocked, models.VerdictExhausted:
		verdict = cl.paint(color.FgRed, verdict)
	}

	lines := []string{pb.Render() + " - " + verdict}
	if len(record.Bonuses) > 0 {
		lines = append(lines, "Bonuses: "+strings.Join(record.Bonuses, ", "))
	}
	if record.BlockedTier >= 0 {
		lines = append(lines, cl.paint(color.FgYellow, fmt.Sprintf("Tiers after %d skipped", record.BlockedTier)))
	}
	cl.write(lines...)
}

// LogCountdown logs the pause before the next iteration.
func (cl *ConsoleLogger) LogCountdown(remaining, total time.Duration) {
	if !cl.shouldLog("info") || remaining <= 0 {
		return
	}
	cl.write(cl.paint(color.FgCyan, fmt.Sprintf("Next iteration in %s (of %s)", formatDuration(remaining), formatDuration(total))))
}

// LogSummary logs the run summary at INFO level.
func (cl *ConsoleLogger) LogSummary(summary models.RunSummary) {
	if !cl.shouldLog("info") {
		return
	}

	verdict := string(summary.Verdict)
	if summary.Verdict == models.VerdictReached {
		verdict = cl.paint(color.FgGreen, verdict)
	} else {
		verdict = cl.paint(color.FgRed, verdict)
	}

	lines := []string{
		cl.paint(color.Bold, "=== Run Summary ==="),
		fmt.Sprintf("Run: %s (issue #%s)", summary.RunID, summary.IssueID),
		fmt.Sprintf("Verdict: %s", verdict),
		fmt.Sprintf("Score: %g/%g (best %g)", summary.FinalScore, summary.TargetScore, summary.BestScore),
		fmt.Sprintf("Iterations: %d", summary.Iterations),
		fmt.Sprintf("Duration: %s", formatDuration(summary.Duration)),
		fmt.Sprintf("Sub-issues created: %d", summary.IssuesCreated),
	}
	if summary.PullRequest != "" {
		lines = append(lines, "Pull request: "+cl.paint(color.FgCyan, summary.PullRequest))
	}
	cl.write(lines...)
}
