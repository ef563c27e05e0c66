package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// executeCommand runs the root command with args and returns the combined output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	rootCmd := NewRootCommand()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	output, err := executeCommand(t, "--help")
	if err != nil {
		t.Fatalf("help returned error: %v", err)
	}
	if !strings.Contains(output, "ralph") {
		t.Errorf("Help text should mention ralph, got: %s", output)
	}
	if !strings.Contains(output, "verification gates") {
		t.Errorf("Help text should describe the gates, got: %s", output)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	if cmd.Use != "ralph" {
		t.Errorf("Expected Use to be 'ralph', got '%s'", cmd.Use)
	}

	want := map[string]bool{"run": false, "validate": false, "status": false, "history": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Missing subcommand %q", name)
		}
	}
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: ExitBlocked, Err: os.ErrClosed}
	if !strings.Contains(err.Error(), "exit 2") {
		t.Errorf("Error() = %q, want exit code", err.Error())
	}
	if err.Unwrap() != os.ErrClosed {
		t.Error("Unwrap should return the wrapped error")
	}
}
