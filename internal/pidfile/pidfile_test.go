package pidfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t1.pid")

	lock, err := Acquire(path, 4242)
	require.NoError(t, err)
	defer lock.Release()

	pid, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, 4242, pid)
}

func TestAcquireTwiceFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t2.pid")

	lock, err := Acquire(path, 100)
	require.NoError(t, err)
	defer lock.Release()

	_, err = Acquire(path, 200)
	require.ErrorIs(t, err, ErrLocked)
}

func TestReleaseUnlinksPidfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t3.pid")

	lock, err := Acquire(path, 1)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestClientPathDerivation(t *testing.T) {
	require.Equal(t, "/var/run/foo.clientpid", ClientPath("/var/run/foo.pid"))
}

func TestClientPIDRoundTrip(t *testing.T) {
	dir := t.TempDir()
	clientPath := filepath.Join(dir, "foo.clientpid")

	require.NoError(t, WriteClientPID(clientPath, 999))
	pid, err := Read(clientPath)
	require.NoError(t, err)
	require.Equal(t, 999, pid)

	require.NoError(t, RemoveClientPID(clientPath))
	require.NoError(t, RemoveClientPID(clientPath)) // idempotent
}

func TestProbeStaleOnUnlockedPidfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t4.pid")
	require.NoError(t, os.WriteFile(path, []byte("123\n"), 0o600))

	stale, err := ProbeStale(path)
	require.NoError(t, err)
	require.True(t, stale)
}

func TestProbeStaleOnLockedPidfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t5.pid")

	lock, err := Acquire(path, os.Getpid())
	require.NoError(t, err)
	defer lock.Release()

	stale, err := ProbeStale(path)
	require.NoError(t, err)
	require.False(t, stale)
}
