package control

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreward/daemon/internal/pidfile"
)

func TestRunningReportsNotRunningForStalePidfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t1.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o600))

	status, err := Running(path)
	require.NoError(t, err)
	require.False(t, status.Running)
}

func TestRunningReportsClientpidWhenPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t2.pid")

	lock, err := pidfile.Acquire(path, os.Getpid())
	require.NoError(t, err)
	defer lock.Release()

	require.NoError(t, pidfile.WriteClientPID(lock.ClientPath(), 4242))

	status, err := Running(path)
	require.NoError(t, err)
	require.True(t, status.Running)
	require.True(t, status.HasClient)
	require.Equal(t, 4242, status.ClientPid)
}

func TestFormatRunningVariants(t *testing.T) {
	require.Equal(t, "t1 is not running", FormatRunning("t1", Status{}))
	require.Equal(t, "t1 is running (pid 5) (client is not running)",
		FormatRunning("t1", Status{Running: true, Pid: 5}))
	require.Equal(t, "t1 is running (pid 5) (clientpid 6)",
		FormatRunning("t1", Status{Running: true, Pid: 5, HasClient: true, ClientPid: 6}))
}

func TestListSortsSmartAndProbes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"t10", "t2"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".pid"), []byte("999999\n"), 0o600))
	}

	entries, err := List(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "t2", entries[0].Name)
	require.Equal(t, "t10", entries[1].Name)
	require.False(t, entries[0].Status.Running)
}

func TestResolveSignalByName(t *testing.T) {
	sig, err := ResolveSignal("term")
	require.NoError(t, err)
	require.Equal(t, "terminated", sig.String())
}

func TestResolveSignalWithSigPrefix(t *testing.T) {
	sig1, err := ResolveSignal("SIGTERM")
	require.NoError(t, err)
	sig2, err := ResolveSignal("term")
	require.NoError(t, err)
	require.Equal(t, sig2, sig1)
}

func TestResolveSignalByNumber(t *testing.T) {
	sig, err := ResolveSignal("15")
	require.NoError(t, err)
	require.Equal(t, 15, int(sig))
}

func TestResolveSignalUnknown(t *testing.T) {
	_, err := ResolveSignal("bogus")
	require.Error(t, err)
}
