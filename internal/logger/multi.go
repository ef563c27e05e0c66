package logger

import (
	"time"

	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/run"
)

// Multi fans every event out to each logger in order.
type Multi []run.Logger

// NewMulti drops nil loggers and returns the fan-out.
func NewMulti(loggers ...run.Logger) Multi {
	var m Multi
	for _, l := range loggers {
		if l != nil {
			m = append(m, l)
		}
	}
	return m
}

func (m Multi) LogDebug(message string) {
	for _, l := range m {
		l.LogDebug(message)
	}
}

func (m Multi) LogInfo(message string) {
	for _, l := range m {
		l.LogInfo(message)
	}
}

func (m Multi) LogWarn(message string) {
	for _, l := range m {
		l.LogWarn(message)
	}
}

func (m Multi) LogError(message string) {
	for _, l := range m {
		l.LogError(message)
	}
}

func (m Multi) LogPhase(phase string) {
	for _, l := range m {
		l.LogPhase(phase)
	}
}

func (m Multi) LogIterationStart(iteration, maxIterations int) {
	for _, l := range m {
		l.LogIterationStart(iteration, maxIterations)
	}
}

func (m Multi) LogTierStart(tier int, gates []string) {
	for _, l := range m {
		l.LogTierStart(tier, gates)
	}
}

func (m Multi) LogTierComplete(tier int, results []models.GateResult, duration time.Duration) {
	for _, l := range m {
		l.LogTierComplete(tier, results, duration)
	}
}

func (m Multi) LogGateResult(result models.GateResult) {
	for _, l := range m {
		l.LogGateResult(result)
	}
}

func (m Multi) LogIterationComplete(record models.IterationRecord) {
	for _, l := range m {
		l.LogIterationComplete(record)
	}
}

func (m Multi) LogCountdown(remaining, total time.Duration) {
	for _, l := range m {
		l.LogCountdown(remaining, total)
	}
}

func (m Multi) LogSummary(summary models.RunSummary) {
	for _, l := range m {
		l.LogSummary(summary)
	}
}

var (
	_ run.Logger    = (*ConsoleLogger)(nil)
	_ run.Logger    = (*FileLogger)(nil)
	_ run.Logger    = (*NoOpLogger)(nil)
	_ run.Logger    = Multi(nil)
	_ run.AuditSink = (*AuditLog)(nil)
)
