package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "programs:\n  hello:\n    cmd: /bin/echo hi\n")

	programs, err := Load(path)
	require.NoError(t, err)

	hello, ok := programs["hello"]
	require.True(t, ok, "expected program hello, got %v", programs)
	require.Equal(t, 1, hello.NumProcs)
	require.Equal(t, 3, hello.StartRetries)
	require.Equal(t, "TERM", hello.StopSignal)
}

func TestLoadRejectsMissingCmd(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "programs:\n  bad:\n    numprocs: 2\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadAutoRestart(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "programs:\n  bad:\n    cmd: /bin/true\n    autorestart: sometimes\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestResolvePrefersExplicitPath(t *testing.T) {
	got, err := Resolve("/tmp/explicit.yml")
	require.NoError(t, err)
	require.Equal(t, "/tmp/explicit.yml", got)
}

func TestResolveFallsBackToSearchPaths(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(cwd) }()
	require.NoError(t, os.Chdir(dir))

	writeConfig(t, dir, "programs: {}\n")

	got, err := Resolve("")
	require.NoError(t, err)
	require.Equal(t, "config.yml", got)
}
