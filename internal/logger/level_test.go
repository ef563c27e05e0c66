package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

// TestLogLevelFiltering verifies messages below the configured level are dropped
func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		level    string
		expected []string
		dropped  []string
	}{
		{"trace", []string{"[TRACE] t", "[DEBUG] d", "[INFO] i", "[WARN] w", "[ERROR] e"}, nil},
		{"debug", []string{"[DEBUG] d", "[INFO] i"}, []string{"[TRACE]"}},
		{"info", []string{"[INFO] i", "[WARN] w"}, []string{"[TRACE]", "[DEBUG]"}},
		{"warn", []string{"[WARN] w", "[ERROR] e"}, []string{"[INFO]", "[DEBUG]"}},
		{"error", []string{"[ERROR] e"}, []string{"[WARN]", "[INFO]"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewConsoleLogger(buf, tt.level)
			logger.LogTrace("t")
			logger.LogDebug("d")
			logger.LogInfo("i")
			logger.LogWarn("w")
			logger.LogError("e")

			out := buf.String()
			for _, want := range tt.expected {
				if !strings.Contains(out, want) {
					t.Errorf("expected %q in output:\n%s", want, out)
				}
			}
			for _, unwanted := range tt.dropped {
				if strings.Contains(out, unwanted) {
					t.Errorf("did not expect %q in output:\n%s", unwanted, out)
				}
			}
		})
	}
}

func TestNormalizeLogLevel(t *testing.T) {
	tests := map[string]string{
		"":        "info",
		"DEBUG":   "debug",
		" warn ":  "warn",
		"warning": "warn",
		"verbose": "info",
		"Error":   "error",
	}
	for in, want := range tests {
		if got := normalizeLogLevel(in); got != want {
			t.Errorf("normalizeLogLevel(%q) = %q, want %q", in, got, want)
		}
	}

	if !ValidLevel("Trace") || ValidLevel("loud") {
		t.Error("ValidLevel mismatch")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m30s"},
		{2 * time.Minute, "2m"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{time.Hour + time.Minute + time.Second, "1h1m1s"},
		{3 * time.Hour, "3h"},
		{400 * time.Millisecond, "0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFileLoggerWithLogLevel(t *testing.T) {
	logger, err := NewFileLoggerWithDirAndLevel(t.TempDir(), "warn")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}
	defer logger.Close()

	logger.LogInfo("hidden info")
	logger.LogWarn("shown warning")

	out := readFileLoggerOutput(t, logger)
	if strings.Contains(out, "hidden info") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "[WARN] shown warning") {
		t.Errorf("warn message missing:\n%s", out)
	}
}

func readFileLoggerOutput(t *testing.T, logger *FileLogger) string {
	t.Helper()
	data, err := os.ReadFile(logger.RunFile())
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	return string(data)
}
