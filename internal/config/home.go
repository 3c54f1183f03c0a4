package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvHome overrides project root discovery.
const EnvHome = "RALPH_HOME"

// StateDirName holds config, logs, history and the run lock.
const StateDirName = ".ralph"

// FindProjectRoot returns the directory ralph should treat as the project root.
// Priority order:
//  1. RALPH_HOME environment variable (if set)
//  2. The nearest ancestor of start containing a .ralph directory
//  3. start itself
func FindProjectRoot(start string) (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return filepath.Abs(home)
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	current := abs
	for {
		if info, err := os.Stat(filepath.Join(current, StateDirName)); err == nil && info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return abs, nil
}

// EnsureStateDir creates root/.ralph if needed and returns its path.
func EnsureStateDir(root string) (string, error) {
	dir := filepath.Join(root, StateDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return dir, nil
}

// Resolve makes relative paths in the config relative to root. Absolute
// paths are left alone.
func (c *Config) Resolve(root string) {
	c.ProjectRoot = root
	for _, p := range []*string{&c.TaskFile, &c.ResultsFile, &c.WorkingDir, &c.LogDir, &c.History.DBPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}
