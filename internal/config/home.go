package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the directory ralph keeps its state in.
const HomeEnv = "RALPH_HOME"

// GetRalphHome returns the directory for checkpoints, history and audit
// files. Priority order:
//  1. RALPH_HOME environment variable (if set)
//  2. <repository root>/.ralph, the root being the nearest ancestor of dir
//     holding a .git entry
//  3. <dir>/.ralph
//
// The directory is created if it doesn't exist.
func GetRalphHome(dir string) (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create ralph home directory: %w", err)
		}
		return home, nil
	}

	base := dir
	if root, ok := findRepoRoot(dir); ok {
		base = root
	}

	home := filepath.Join(base, ".ralph")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create ralph home directory: %w", err)
	}
	return home, nil
}

// ResolveStateDir returns the configured state_dir, made absolute against
// dir, or GetRalphHome when state_dir is empty.
func (c *Config) ResolveStateDir(dir string) (string, error) {
	if c.StateDir == "" {
		return GetRalphHome(dir)
	}
	path := c.StateDir
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return path, nil
}

func findRepoRoot(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(abs, ".git")); err == nil {
			return abs, true
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}
		abs = parent
	}
}
