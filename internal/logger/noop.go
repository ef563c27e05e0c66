package logger

import (
	"time"

	"github.com/harrison/ralph/internal/models"
)

// NoOpLogger discards all log messages.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogDebug(string)                                         {}
func (n *NoOpLogger) LogInfo(string)                                          {}
func (n *NoOpLogger) LogWarn(string)                                          {}
func (n *NoOpLogger) LogError(string)                                         {}
func (n *NoOpLogger) LogPhase(string)                                         {}
func (n *NoOpLogger) LogIterationStart(int, int)                              {}
func (n *NoOpLogger) LogTierStart(int, []string)                              {}
func (n *NoOpLogger) LogTierComplete(int, []models.GateResult, time.Duration) {}
func (n *NoOpLogger) LogGateResult(models.GateResult)                         {}
func (n *NoOpLogger) LogIterationComplete(models.IterationRecord)             {}
func (n *NoOpLogger) LogCountdown(time.Duration, time.Duration)               {}
func (n *NoOpLogger) LogSummary(models.RunSummary)                            {}
