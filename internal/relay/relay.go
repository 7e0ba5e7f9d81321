// Package relay implements the I/O relay (C7): a single-threaded
// cooperative loop driven by one select(2) call that shuttles bytes
// between the supervisor's own stdio, the coprocess's pipes or PTY
// master, and the configured log sinks, then reaps the child and hands
// control back to the respawn controller.
//
// Grounded on original_source/daemon/daemon.c's main select loop and
// reap/waitpid handling. Built directly on golang.org/x/sys/unix.Select
// rather than goroutines-and-channels: the spec's invariants (exactly
// one suspension point, EINTR-loops-not-errors, signal flags polled
// immediately before and handled immediately after that one blocking
// call) describe select(2)'s exact semantics, and translating them into
// a channel-based scheduler would leave the suspension point implicit
// and unobservable - the opposite of what §4.7 is specifying.
package relay

import (
	"bytes"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

const bufSize = 8192

// Sink receives raw output bytes read from the coprocess.
type Sink interface {
	Write(p []byte) (int, error)
}

// LineSink receives one already-newline-split record at a time; used for
// syslog sinks, which the spec requires to emit per-line rather than
// raw byte spans.
type LineSink interface {
	WriteLine(line string) error
}

// Router is the subset of sigctl.Router's surface the relay polls each
// iteration.
type Router interface {
	Terminated() bool
	ReceivedSIGCHLD() bool
}

// ReapResult describes how the coprocess terminated, for C6/logging.
type ReapResult struct {
	Pid      int
	ExitCode int
	Signal   syscall.Signal
	Signaled bool
	Stopped  bool
}

// Config wires up the relay's fds and sinks. Exactly one of PTYMasterFD
// or (ChildStdout, ChildStderr) should be populated, matching §4.4's two
// coprocess modes.
type Config struct {
	Foreground bool

	PTYMasterFD int // -1 when not in PTY mode

	ChildStdout *os.File // nil when in PTY mode
	ChildStderr *os.File

	ChildStdin *os.File // pipe-mode stdin; nil in PTY mode (master doubles for input)

	Mirror      bool
	FileSink    Sink
	SyslogSink  LineSink

	// IgnoreEOF, when true (--ignore-eof), reaps as soon as SIGCHLD
	// arrives instead of draining remaining output to EOF first. The
	// spec's default is false (read-eof): drain grandchildren-held
	// output before reaping, at the risk of blocking if a grandchild
	// keeps the pipe open.
	IgnoreEOF bool

	// SessionMonitorFD, when >= 0, is polled for logind session-count
	// changes (§4.7 bind-to-session, platform-gated and optional).
	SessionMonitorFD int
	// SessionCount, when SessionMonitorFD >= 0, returns the current
	// logind session count after the monitor fd has been flushed.
	SessionCount func() (int, error)
}

// Relay runs one supervised-child lifetime's I/O loop.
type Relay struct {
	cfg Config

	stdinEOF    bool
	outputsOpen map[int]bool // fd -> still open
}

// New builds a Relay from cfg.
func New(cfg Config) *Relay {
	r := &Relay{cfg: cfg, outputsOpen: map[int]bool{}}

	if cfg.PTYMasterFD >= 0 {
		r.outputsOpen[cfg.PTYMasterFD] = true
	}
	if cfg.ChildStdout != nil {
		r.outputsOpen[int(cfg.ChildStdout.Fd())] = true
	}
	if cfg.ChildStderr != nil {
		r.outputsOpen[int(cfg.ChildStderr.Fd())] = true
	}

	return r
}

// Run drives the relay loop until the child's outputs are all closed or
// a signal-driven exit condition fires, then returns so the caller can
// reap. terminated/sigchld flags come from router; stdin (fd 0) is
// included in the select set only when cfg.Foreground and not yet EOF.
func (r *Relay) Run(router Router) error {
	for {
		if r.shouldReapNow(router) {
			return nil
		}

		if len(r.openOutputs()) == 0 {
			return nil
		}

		rfds := &unix.FdSet{}
		maxFD := 0

		addFD := func(fd int) {
			setFD(rfds, fd)
			if fd > maxFD {
				maxFD = fd
			}
		}

		if r.cfg.Foreground && !r.stdinEOF {
			addFD(0)
		}
		for fd := range r.openOutputs() {
			addFD(fd)
		}
		if r.cfg.SessionMonitorFD >= 0 {
			addFD(r.cfg.SessionMonitorFD)
		}

		n, err := unix.Select(maxFD+1, rfds, nil, nil, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("relay: select: %w", err)
		}
		if n == 0 {
			continue
		}

		if r.cfg.Foreground && !r.stdinEOF && isFDSet(rfds, 0) {
			r.handleStdinReady()
		}

		for fd := range r.openOutputs() {
			if isFDSet(rfds, fd) {
				r.handleOutputReady(fd)
			}
		}

		if r.cfg.SessionMonitorFD >= 0 && isFDSet(rfds, r.cfg.SessionMonitorFD) {
			if terminate := r.handleSessionMonitor(); terminate {
				syscall.Kill(os.Getpid(), syscall.SIGTERM)
			}
		}
	}
}

// shouldReapNow implements the ignore-eof/read-eof policy split: only
// ignore-eof treats SIGCHLD itself as the signal to stop relaying and
// reap; read-eof (the default) keeps draining until every output fd
// reports EOF on its own.
func (r *Relay) shouldReapNow(router Router) bool {
	return r.cfg.IgnoreEOF && router.ReceivedSIGCHLD()
}

func (r *Relay) openOutputs() map[int]bool {
	return r.outputsOpen
}

func (r *Relay) handleOutputReady(fd int) {
	buf := make([]byte, bufSize)
	n, err := unix.Read(fd, buf)
	if err != nil || n == 0 {
		delete(r.outputsOpen, fd)
		return
	}

	chunk := buf[:n]

	if r.cfg.Mirror {
		if fd == r.cfg.PTYMasterFD || (r.cfg.ChildStdout != nil && fd == int(r.cfg.ChildStdout.Fd())) {
			os.Stdout.Write(chunk)
		} else {
			os.Stderr.Write(chunk)
		}
	}

	if r.cfg.FileSink != nil {
		r.cfg.FileSink.Write(chunk)
	}

	if r.cfg.SyslogSink != nil {
		emitSyslogLines(r.cfg.SyslogSink, chunk)
	}
}

// emitSyslogLines splits chunk on '\n' and emits each segment as one
// syslog record, including a trailing incomplete line - §4.7 explicitly
// forgoes cross-read line buffering.
func emitSyslogLines(sink LineSink, chunk []byte) {
	for _, line := range bytes.Split(chunk, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		sink.WriteLine(string(line))
	}
}

func (r *Relay) handleStdinReady() {
	buf := make([]byte, bufSize)
	n, err := unix.Read(0, buf)
	if err != nil || n == 0 {
		r.stdinEOF = true
		r.signalStdinEOF()
		return
	}

	if r.cfg.PTYMasterFD >= 0 {
		unix.Write(r.cfg.PTYMasterFD, buf[:n])
	} else if r.cfg.ChildStdin != nil {
		r.cfg.ChildStdin.Write(buf[:n])
	}
}

// signalStdinEOF sends the terminal's VEOF character to the PTY master
// (so the coprocess's line discipline sees end-of-input the way a real
// terminal would deliver it), or closes the pipe-mode child-input fd.
func (r *Relay) signalStdinEOF() {
	if r.cfg.PTYMasterFD >= 0 {
		if veof, ok := veofChar(r.cfg.PTYMasterFD); ok {
			unix.Write(r.cfg.PTYMasterFD, []byte{veof})
		}
		return
	}

	if r.cfg.ChildStdin != nil {
		r.cfg.ChildStdin.Close()
	}
}

func (r *Relay) handleSessionMonitor() (terminate bool) {
	if r.cfg.SessionCount == nil {
		return false
	}
	count, err := r.cfg.SessionCount()
	if err != nil {
		return false
	}
	return count == 0
}

// Reap waits for pid, looping over EINTR and giving router a chance to
// process signal flags between retries, then classifies how the child
// terminated. It does not unlink the .clientpid sidecar - callers own
// that, since only they know the path.
func Reap(pid int, router Router) (ReapResult, error) {
	var ws syscall.WaitStatus

	for {
		_, err := syscall.Wait4(pid, &ws, 0, nil)
		if err == syscall.EINTR {
			router.ReceivedSIGCHLD()
			continue
		}
		if err != nil {
			return ReapResult{}, fmt.Errorf("relay: wait4 %d: %w", pid, err)
		}
		break
	}

	res := ReapResult{Pid: pid}
	switch {
	case ws.Exited():
		res.ExitCode = ws.ExitStatus()
	case ws.Signaled():
		res.Signaled = true
		res.Signal = ws.Signal()
	case ws.Stopped():
		res.Stopped = true
	}

	return res, nil
}
