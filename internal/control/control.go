package control

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/coreward/daemon/internal/pidfile"
	"github.com/coreward/daemon/internal/smartsort"
)

// Status is the outcome of a --running probe.
type Status struct {
	Running    bool
	Pid        int
	ClientPid  int
	HasClient  bool
}

// Running implements --running (§4.8): a non-blocking shared lock probe
// against the pidfile; succeeding means nobody holds the exclusive
// lock, i.e. the daemon is not running.
func Running(pidfilePath string) (Status, error) {
	stale, err := pidfile.ProbeStale(pidfilePath)
	if err != nil {
		return Status{}, err
	}
	if stale {
		return Status{Running: false}, nil
	}

	pid, err := pidfile.Read(pidfilePath)
	if err != nil {
		return Status{}, err
	}

	status := Status{Running: true, Pid: pid}
	clientPath := pidfile.ClientPath(pidfilePath)
	if cpid, err := pidfile.Read(clientPath); err == nil {
		status.ClientPid = cpid
		status.HasClient = true
	}

	return status, nil
}

// FormatRunning renders a --running result per §6's verbose output
// grammar.
func FormatRunning(name string, s Status) string {
	if !s.Running {
		return fmt.Sprintf("%s is not running", name)
	}
	if s.HasClient {
		return fmt.Sprintf("%s is running (pid %d) (clientpid %d)", name, s.Pid, s.ClientPid)
	}
	return fmt.Sprintf("%s is running (pid %d) (client is not running)", name, s.Pid)
}

// Stop implements --stop: read the supervisor pid and send TERM.
func Stop(pidfilePath string) error {
	pid, err := pidfile.Read(pidfilePath)
	if err != nil {
		return fmt.Errorf("control: stop: %w", err)
	}
	return syscall.Kill(pid, syscall.SIGTERM)
}

// Restart implements --restart: read the supervisor pid and send USR1,
// whose handler (in the target process) performs the child restart.
func Restart(pidfilePath string) error {
	pid, err := pidfile.Read(pidfilePath)
	if err != nil {
		return fmt.Errorf("control: restart: %w", err)
	}
	return syscall.Kill(pid, syscall.SIGUSR1)
}

// Signal implements --signal NAME: reads the client (not supervisor)
// pid from .clientpid and signals it.
func Signal(pidfilePath string, spec string) error {
	sig, err := ResolveSignal(spec)
	if err != nil {
		return err
	}

	clientPath := pidfile.ClientPath(pidfilePath)
	pid, err := pidfile.Read(clientPath)
	if err != nil {
		return fmt.Errorf("control: signal: no running client for this instance: %w", err)
	}

	return syscall.Kill(pid, sig)
}

// ListEntry is one row of --list output.
type ListEntry struct {
	Name   string
	Status Status
}

// List implements --list: enumerate *.pid in dir, smart-sorted, with a
// Running probe applied to each.
func List(dir string) ([]ListEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("control: list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pid") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".pid"))
	}
	smartsort.Strings(names)

	var out []ListEntry
	for _, name := range names {
		status, err := Running(filepath.Join(dir, name+".pid"))
		if err != nil {
			continue
		}
		out = append(out, ListEntry{Name: name, Status: status})
	}

	return out, nil
}
