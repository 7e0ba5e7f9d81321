// Package pidfile implements the named-instance locking protocol (§4.2):
// resolving the pidfile path from name/dir conventions, acquiring the
// exclusive advisory lock that enforces "at most one named instance",
// writing/reading the PID, and managing the unlocked .clientpid sidecar.
//
// Grounded on original_source/daemon/daemon.c's prepare_pidfiles,
// construct_pidfile/construct_clientpidfile, create_clientpidfile,
// unlink_clientpidfile and getclientpid. The exclusive-lock acquisition
// itself is implemented over github.com/gofrs/flock (surfaced while
// reading Talismancer-gvisor-ligolo's go.mod), whose TryLock already
// distinguishes "lock held elsewhere" from other I/O failures the way
// LockContention (§7) needs.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"github.com/coreward/daemon/internal/platform"
)

// ErrLocked is returned by Acquire when another instance already holds
// the named pidfile's lock. Per §7 this is LockContention: fatal,
// "another instance owns the name".
var ErrLocked = errors.New("pidfile: already locked by another instance")

// Lock represents an acquired pidfile lock held for the supervisor
// process's lifetime.
type Lock struct {
	path       string
	clientPath string
	flock      *flock.Flock
}

// Path returns the resolved path for <name>.pid given the operator's
// choices, in the precedence order §4.2 specifies: explicit full path >
// dir+name > system default.
func Path(explicitPidfile, pidfileDir, name string, uid int) (string, error) {
	if explicitPidfile != "" {
		return explicitPidfile, nil
	}

	if name == "" {
		return "", fmt.Errorf("pidfile: --name is required to derive a pidfile path")
	}

	dir := pidfileDir
	if dir == "" {
		dir = platform.SystemDefaultDir(uid)
	}

	if err := maybeCreateHomeRelativeDir(dir, uid); err != nil {
		return "", err
	}

	return filepath.Join(dir, name+".pid"), nil
}

// maybeCreateHomeRelativeDir creates dir with mode 0700 only when it lies
// beneath the invoking user's home directory and doesn't already exist -
// §4.2 explicitly forbids auto-creating system directories.
func maybeCreateHomeRelativeDir(dir string, uid int) error {
	if uid == 0 {
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil
	}

	rel, err := filepath.Rel(home, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(dir, 0o700)
	}

	return nil
}

// Acquire implements the acquisition protocol: open/create with
// owner-only permissions, take a non-blocking exclusive lock on the
// whole file, truncate, and write the current PID. The descriptor is
// kept open (embedded in the returned Lock) for the process's lifetime.
func Acquire(path string, pid int) (*Lock, error) {
	if err := maybeCreateHomeRelativeDir(filepath.Dir(path), os.Getuid()); err != nil {
		return nil, fmt.Errorf("pidfile: create parent dir for %q: %w", path, err)
	}

	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("pidfile: lock %q: %w", path, err)
	}
	if !locked {
		return nil, ErrLocked
	}

	if err := os.Chmod(path, 0o600); err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("pidfile: chmod %q: %w", path, err)
	}

	if err := writePID(path, pid); err != nil {
		fl.Unlock()
		return nil, err
	}

	return &Lock{path: path, clientPath: ClientPath(path), flock: fl}, nil
}

// writePID truncates and (re)writes the pidfile's contents. Advisory
// flock(2)-style locks constrain other lock attempts, not plain
// reads/writes, so writing through a second file descriptor than the one
// flock.Flock holds internally is safe and keeps this package decoupled
// from that library's unexported file handle.
func writePID(path string, pid int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("pidfile: open %q for write: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		return fmt.Errorf("pidfile: write: %w", err)
	}
	return nil
}

// Path returns the locked pidfile's path.
func (l *Lock) Path() string { return l.path }

// ClientPath returns the sibling .clientpid path for this pidfile.
func (l *Lock) ClientPath() string { return l.clientPath }

// Release unlocks and removes the pidfile. Invoked from an atexit-style
// deferred call, matching the original's unlink-on-exit hook augmenting
// OS-on-exit lock release.
func (l *Lock) Release() error {
	defer os.Remove(l.path)
	return l.flock.Unlock()
}

// ClientPath derives the <base>.clientpid sidecar path from a pidfile
// path, per §4.2 and §6.
func ClientPath(pidfilePath string) string {
	return strings.TrimSuffix(pidfilePath, ".pid") + ".clientpid"
}

// WriteClientPID creates the (unlocked, 0644) .clientpid sidecar after
// the client has been forked, per construct_clientpidfile/
// create_clientpidfile.
func WriteClientPID(clientPath string, pid int) error {
	return os.WriteFile(clientPath, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// RemoveClientPID unlinks the .clientpid sidecar after the client has
// been reaped, per unlink_clientpidfile. Missing files are not an error.
func RemoveClientPID(clientPath string) error {
	err := os.Remove(clientPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Read reads and parses the PID stored in path. Used by the control
// plane (§4.8) and by discovery, which never take the lock themselves.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("pidfile: %q does not contain a valid PID: %w", path, err)
	}

	return pid, nil
}

// ProbeStale reports whether the pidfile at path is stale: no process
// currently holds its exclusive lock. It does so via a non-blocking
// shared-lock probe that never blocks and never disturbs a live lock.
func ProbeStale(path string) (bool, error) {
	fl := flock.New(path)
	locked, err := fl.TryRLock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	if locked {
		_ = fl.Unlock()
		return true, nil
	}
	return false, nil
}
