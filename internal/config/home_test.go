package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProjectRoot(t *testing.T) {
	t.Setenv(EnvHome, "")

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, StateDirName), 0755))
	nested := filepath.Join(root, "src", "pkg")
	require.NoError(t, os.MkdirAll(nested, 0755))

	got, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	plain := t.TempDir()
	got, err = FindProjectRoot(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, got, "falls back to start")
}

func TestFindProjectRoot_EnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)

	got, err := FindProjectRoot(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, home, got)
}

func TestEnsureStateDir(t *testing.T) {
	root := t.TempDir()
	dir, err := EnsureStateDir(root)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, filepath.Join(root, ".ralph"), dir)
}

func TestResolve(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResultsFile = "/abs/results.json"
	cfg.Resolve("/project")

	assert.Equal(t, filepath.Join("/project", "prd.json"), cfg.TaskFile)
	assert.Equal(t, "/abs/results.json", cfg.ResultsFile)
	assert.Equal(t, "/project", cfg.WorkingDir)
	assert.Equal(t, filepath.Join("/project", ".ralph", "logs"), cfg.LogDir)
	assert.Equal(t, filepath.Join("/project", ".ralph", "history.db"), cfg.History.DBPath)
	assert.Equal(t, "/project", cfg.ProjectRoot)
}
