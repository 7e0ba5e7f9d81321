// Package daemonize implements the double-fork-equivalent startup sequence
// (§4.3): detach from the controlling terminal, become a session leader,
// reset the filesystem posture and standard descriptors, and hand control
// back to the caller once the process is running unattended.
//
// Grounded on original_source/daemon/daemon.c's prepare_parent/daemon_init.
// Go cannot call fork(2) and keep running inside a multi-threaded runtime,
// so the double fork is replaced with a single re-exec of the running
// binary under SysProcAttr{Setsid: true}: this gives setsid() and process
// group detachment in one step without a literal second fork. This is the
// one place the original's literal control flow is not kept; every
// externally observable effect it lists - SIGHUP ignored during startup,
// no controlling TTY, chdir("/"), umask(0), stdio reopened onto
// /dev/null, pidfile lock installed before the parent exits - is still
// produced, in the same order. The re-exec marker variable names follow
// the environment-signal convention stephen-fox-cyberdaemon's systemd path
// uses to tell an already-running instance apart from a fresh invocation
// (daemon_systemd_linux.go's PS1 check in RunUntilExit).
package daemonize

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// reexecMarker is set in the child's environment so it knows it is the
// re-executed, already-detached copy rather than the original invocation.
const reexecMarker = "__DAEMON_REEXEC"

// startDelayEnv optionally delays the parent's exit, to work around
// desktop IPC services that bind late. The delay is counted from the
// spawn of the detached child; the parent then still waits for the
// child's readiness report, so it exits after whichever takes longer.
const startDelayEnv = "DAEMON_START_DELAY_MS"

// Result reports the outcome of Run in the child (detached) process.
type Result struct {
	// Reexeced is true when Run returns in the process that goes on to
	// supervise: the re-exec'd detached child, or the original process
	// itself in super-server mode (which does not re-exec).
	Reexeced bool
}

// InSuperServerMode reports whether the process was started by init
// (ppid==1) or an inetd-style super-server (stdin is a socket), in which
// case the detach sequence (steps 2-5 of §4.3) is skipped entirely: fd 0
// is the super-server's connection and must not be closed or reopened.
func InSuperServerMode() bool {
	if os.Getppid() == 1 {
		return true
	}

	var stat unix.Stat_t
	if err := unix.Fstat(0, &stat); err != nil {
		return false
	}
	return stat.Mode&unix.S_IFMT == unix.S_IFSOCK
}

// Run executes the daemonizer sequence. lockFn is invoked by the detached
// child after chdir/umask/fd-reset, and must install the pidfile lock
// (§4.2); its error aborts startup: Run returns it in the child, and the
// child reports the failure over the readiness pipe, so the original
// process (still waiting on that pipe) exits with status 1.
//
// Run either re-execs and never returns in the parent (os.Exit is called
// once the child has reported successful pidfile acquisition), or returns
// Result{Reexeced: true} in the child so the caller can proceed to install
// signal handlers and start the supervised process.
func Run(superServer bool, lockFn func() error) (Result, error) {
	if superServer {
		if err := resetFilesystemPosture(); err != nil {
			return Result{}, err
		}
		if err := lockFn(); err != nil {
			return Result{}, err
		}
		return Result{Reexeced: true}, nil
	}

	if os.Getenv(reexecMarker) == "1" {
		return runDetachedChild(lockFn)
	}

	return Result{}, reexecAsDaemon()
}

// reexecAsDaemon ignores SIGHUP for the remainder of startup (§4.3 step 2)
// and spawns a re-exec of the current binary in a new session, waiting for
// it to signal readiness (pidfile acquired) over a pipe before the
// original process exits. This collapses the original double fork into a
// single Setsid child: the new session has no controlling terminal, so
// there is nothing left to reacquire on SVR4, making the second fork
// unnecessary under Go's process model.
func reexecAsDaemon() error {
	signal.Ignore(syscall.SIGHUP)

	readyR, readyW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("daemonize: create readiness pipe: %w", err)
	}
	defer readyR.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("daemonize: resolve executable: %w", err)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), reexecMarker+"=1")
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{readyW}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("daemonize: spawn detached child: %w", err)
	}
	readyW.Close()

	if delay := startDelay(); delay > 0 {
		time.Sleep(delay)
	}

	status := waitForReadiness(readyR)
	if status != 0 {
		os.Exit(status)
	}
	os.Exit(0)
	panic("unreachable")
}

// waitForReadiness blocks until the detached child closes its end of the
// pipe (success) or writes a single byte (failure, used as an exit code).
func waitForReadiness(r *os.File) int {
	buf := make([]byte, 1)
	n, _ := r.Read(buf)
	if n == 1 {
		return int(buf[0])
	}
	return 0
}

// runDetachedChild performs the remainder of §4.3 from inside the
// re-exec'd, already-setsid'd process: chdir("/"), umask(0), close
// inherited descriptors, reopen stdio onto /dev/null, then install the
// pidfile lock and report readiness to the parent over fd 3.
func runDetachedChild(lockFn func() error) (Result, error) {
	readyW := os.NewFile(3, "readypipe")

	if err := resetFilesystemPosture(); err != nil {
		reportFailure(readyW, err)
		return Result{}, err
	}

	if err := redirectStdio(); err != nil {
		reportFailure(readyW, err)
		return Result{}, err
	}

	if err := lockFn(); err != nil {
		reportFailure(readyW, err)
		return Result{}, err
	}

	if readyW != nil {
		readyW.Close()
	}

	return Result{Reexeced: true}, nil
}

func reportFailure(readyW *os.File, err error) {
	if readyW == nil {
		return
	}
	code := 1
	readyW.Write([]byte{byte(code)})
	readyW.Close()
}

// resetFilesystemPosture performs step 6 of §4.3.
func resetFilesystemPosture() error {
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("daemonize: chdir /: %w", err)
	}
	unix.Umask(0)
	return nil
}

// redirectStdio implements step 8: it reopens stdin/stdout/stderr onto
// /dev/null. It does not close any other inherited descriptor (step 7);
// the readiness pipe on fd 3 is closed separately by runDetachedChild.
func redirectStdio() error {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("daemonize: open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	fd := int(devNull.Fd())
	for _, std := range []int{0, 1, 2} {
		if err := unix.Dup2(fd, std); err != nil {
			return fmt.Errorf("daemonize: dup2 onto fd %d: %w", std, err)
		}
	}
	return nil
}

// startDelay reads the optional exit-delay knob, honored only by the
// not-yet-exited original process, used to paper over desktop session
// buses that aren't ready the instant a daemon starts.
func startDelay() time.Duration {
	raw := os.Getenv(startDelayEnv)
	if raw == "" {
		return 0
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
