package safety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPathRejectsWorldWritableDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "bin")
	require.NoError(t, os.Mkdir(sub, 0o777))
	require.NoError(t, os.Chmod(sub, 0o777))

	target := filepath.Join(sub, "tool")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o755))

	verdict, err := CheckPath(target)
	require.NoError(t, err)
	require.False(t, verdict.Safe)
	require.Contains(t, verdict.Reason, "world-writable")
}

func TestCheckPathAcceptsLockedDownTree(t *testing.T) {
	// t.TempDir usually lives under a world-writable /tmp, which CheckPath
	// rightly rejects as an ancestor, so build the tree under $HOME.
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	dir, err := os.MkdirTemp(home, "safety-test-")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	require.NoError(t, os.Chmod(dir, 0o755))

	target := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o755))

	verdict, err := CheckPath(target)
	require.NoError(t, err)
	require.True(t, verdict.Safe)
}

func TestCheckScriptFollowsShebangInterpreter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o755))

	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho hi\n"), 0o755))

	verdict, err := checkScript(script, 0)
	require.NoError(t, err)
	require.True(t, verdict.Safe)
}

func TestEnforced(t *testing.T) {
	require.True(t, Enforced(0, false, false))
	require.False(t, Enforced(0, true, false))
	require.True(t, Enforced(1000, false, true))
	require.False(t, Enforced(1000, false, false))
}
