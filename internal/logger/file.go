package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/ralph/internal/models"
)

// FileLogger logs run events to files under a log directory.
// It creates a timestamped per-run log, per-gate finding logs under gates/,
// and keeps a latest.log symlink pointing to the most recent run.
// It is thread-safe and implements run.Logger.
type FileLogger struct {
	logDir    string
	runLog    *os.File
	runFile   string
	gatesDir  string
	logLevel  string
	iteration int
	mu        sync.Mutex
}

// NewFileLogger creates a FileLogger writing to .ralph/logs/ at the default level.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(filepath.Join(".ralph", "logs"), "info")
}

// NewFileLoggerWithDir creates a FileLogger with a custom log directory.
func NewFileLoggerWithDir(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log directory and level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	gatesDir := filepath.Join(logDir, "gates")
	if err := os.MkdirAll(gatesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create gates directory: %w", err)
	}

	// run-YYYYMMDD-HHMMSS.log
	stamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", stamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		gatesDir: gatesDir,
		logLevel: normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== Ralph Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return enabled(fl.logLevel, messageLevel)
}

func (fl *FileLogger) line(format string, args ...any) string {
	return fmt.Sprintf("[%s] ", timestamp()) + fmt.Sprintf(format, args...) + "\n"
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fl.line("[%s] %s", level, message))
}

// LogPhase records a phase transition.
func (fl *FileLogger) LogPhase(phase string) {
	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fl.line("Phase: %s", phase))
}

// LogIterationStart records the iteration header and remembers the
// iteration number for gate logs.
func (fl *FileLogger) LogIterationStart(iteration, maxIterations int) {
	fl.mu.Lock()
	fl.iteration = iteration
	fl.mu.Unlock()

	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fl.line("=== Iteration %d/%d ===", iteration, maxIterations))
}

// LogTierStart records the gates of a tier.
func (fl *FileLogger) LogTierStart(tier int, gates []string) {
	if !fl.shouldLog("info") {
		return
	}
	label := "gate"
	if len(gates) != 1 {
		label = "gates"
	}
	fl.writeRunLog(fl.line("Starting tier %d: %d %s (%s)", tier, len(gates), label, gateList(gates)))
}

// LogTierComplete records the tier duration and failing gates.
func (fl *FileLogger) LogTierComplete(tier int, results []models.GateResult, duration time.Duration) {
	if !fl.shouldLog("info") {
		return
	}
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r.Gate)
		}
	}
	msg := fmt.Sprintf("Tier %d complete: duration %.1fs", tier, duration.Seconds())
	if len(failed) > 0 {
		msg += ", failed: " + gateList(failed)
	}
	fl.writeRunLog(fl.line("%s", msg))
}

// LogGateResult records the gate line in the run log and writes the
// gate's findings to gates/iter-<n>-<gate>.log.
func (fl *FileLogger) LogGateResult(result models.GateResult) {
	if fl.shouldLog("info") {
		msg := fmt.Sprintf("Gate /%s: %g/%g %s (outcome %s, provider %s, %.1fs, %d findings)",
			result.Gate, result.Score, result.MaxScore, result.Status(), result.Outcome,
			result.ProviderLabel, result.Duration.Seconds(), len(result.Findings))
		if result.Error != "" {
			msg += ": " + result.Error
		}
		fl.writeRunLog(fl.line("%s", msg))
	}

	if err := fl.writeGateLog(result); err != nil {
		fl.writeRunLog(fl.line("[WARN] gate log for /%s: %v", result.Gate, err))
	}
}

func (fl *FileLogger) writeGateLog(result models.GateResult) error {
	fl.mu.Lock()
	iteration := fl.iteration
	fl.mu.Unlock()

	path := filepath.Join(fl.gatesDir, fmt.Sprintf("iter-%d-%s.log", iteration, result.Gate))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "Gate: /%s\n", result.Gate)
	fmt.Fprintf(&b, "Iteration: %d\n", iteration)
	fmt.Fprintf(&b, "Score: %g/%g (%s)\n", result.Score, result.MaxScore, result.Status())
	fmt.Fprintf(&b, "Outcome: %s\n", result.Outcome)
	if result.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", result.Error)
	}
	if len(result.FilesModified) > 0 {
		fmt.Fprintf(&b, "Files modified: %s\n", strings.Join(result.FilesModified, ", "))
	}
	for i, f := range result.Findings {
		fmt.Fprintf(&b, "\n%d. [%s] %s\n", i+1, strings.ToUpper(string(f.Severity)), f.Title)
		if f.File != "" {
			if f.Line > 0 {
				fmt.Fprintf(&b, "   %s:%d\n", f.File, f.Line)
			} else {
				fmt.Fprintf(&b, "   %s\n", f.File)
			}
		}
		if f.Description != "" {
			fmt.Fprintf(&b, "   %s\n", f.Description)
		}
		if f.Recommendation != "" {
			fmt.Fprintf(&b, "   Fix: %s\n", f.Recommendation)
		}
	}

	_, err = file.WriteString(b.String())
	return err
}

// LogIterationComplete records the aggregated score and verdict.
func (fl *FileLogger) LogIterationComplete(record models.IterationRecord) {
	if !fl.shouldLog("info") {
		return
	}
	msg := fmt.Sprintf("Iteration %d complete: score %g/%g, verdict %s, duration %.1fs, api calls %d",
		record.Iteration, record.Score, record.TargetScore, record.Verdict, record.Duration.Seconds(), record.APICalls)
	if len(record.Bonuses) > 0 {
		msg += ", bonuses: " + strings.Join(record.Bonuses, ", ")
	}
	fl.writeRunLog(fl.line("%s", msg))
}

// LogCountdown is recorded only at debug level.
func (fl *FileLogger) LogCountdown(remaining, total time.Duration) {
	if !fl.shouldLog("debug") {
		return
	}
	fl.writeRunLog(fl.line("Waiting: %s of %s remaining", formatDuration(remaining), formatDuration(total)))
}

// LogSummary records the final run summary.
func (fl *FileLogger) LogSummary(summary models.RunSummary) {
	if !fl.shouldLog("info") {
		return
	}

	var b strings.Builder
	b.WriteString(fl.line("=== Run Summary ==="))
	b.WriteString(fl.line("Run ID: %s", summary.RunID))
	b.WriteString(fl.line("Issue: #%s", summary.IssueID))
	b.WriteString(fl.line("Verdict: %s", summary.Verdict))
	b.WriteString(fl.line("Final score: %g/%g (best %g)", summary.FinalScore, summary.TargetScore, summary.BestScore))
	b.WriteString(fl.line("Iterations: %d", summary.Iterations))
	b.WriteString(fl.line("Duration: %s", formatDuration(summary.Duration)))
	b.WriteString(fl.line("Sub-issues created: %d", summary.IssuesCreated))
	if summary.PullRequest != "" {
		b.WriteString(fl.line("Pull request: %s", summary.PullRequest))
	}
	fl.writeRunLog(b.String())
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}

	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		fl.runLog.Sync()
	}
}
