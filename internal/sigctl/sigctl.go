// Package sigctl implements the signal router (§4.5): a single goroutine
// fed by signal.Notify standing in for the original's async-signal-safe
// handlers, which only set sig_atomic flags and call kill()/ioctl(). Go
// can't run arbitrary code inside a real signal handler, but a dedicated
// goroutine reading from a notify channel gives the same externally
// observable ordering and is the idiomatic replacement the pack's own
// daemon managers use for signal handling
// (stephen-fox-cyberdaemon/daemon_systemd_linux.go's RunUntilExit reads
// os/signal the same way).
//
// Grounded on original_source/daemon/daemon.c's signal handler
// installation and the respawn-reset behavior it documents for SIGUSR1.
package sigctl

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/coreward/daemon/internal/coproc"
)

// Router owns the Terminated/ReceivedSIGCHLD flags and forwards
// TERM/USR1 to the supervised child, mirroring PTY window size on WINCH.
type Router struct {
	terminated       atomic.Bool
	receivedSIGCHLD  atomic.Bool
	childPID         atomic.Int64
	ptyMasterFD      atomic.Int64
	watchWinch       bool
	onUSR1ResetBurst func()

	sigCh chan os.Signal
	done  chan struct{}
}

// New builds a Router. watchWinch should be true only when the
// coprocess is PTY-attached and stdin is a terminal, per §4.5's WINCH
// gating. onUSR1ResetBurst is invoked (in addition to forwarding TERM)
// when USR1 arrives, and should reset the respawn controller's counters
// (§4.6).
func New(watchWinch bool, onUSR1ResetBurst func()) *Router {
	r := &Router{
		watchWinch:       watchWinch,
		onUSR1ResetBurst: onUSR1ResetBurst,
		sigCh:            make(chan os.Signal, 8),
		done:             make(chan struct{}),
	}
	r.ptyMasterFD.Store(-1)
	return r
}

// SetChildPID records the current supervised child's PID so TERM/USR1
// know whether there is anyone to forward to. Zero means no child.
func (r *Router) SetChildPID(pid int) { r.childPID.Store(int64(pid)) }

// SetPTYMasterFD records the PTY master descriptor WINCH should mirror
// window-size changes onto; pass -1 to disable (non-PTY mode).
func (r *Router) SetPTYMasterFD(fd int) { r.ptyMasterFD.Store(int64(fd)) }

// Terminated reports whether TERM has been received.
func (r *Router) Terminated() bool { return r.terminated.Load() }

// ReceivedSIGCHLD reports and clears the CHLD-pending flag.
func (r *Router) ReceivedSIGCHLD() bool {
	return r.receivedSIGCHLD.Swap(false)
}

// Start installs the handlers and begins routing in a background
// goroutine. Exactly TERM, CHLD, USR1 and (conditionally) WINCH are
// subscribed, matching the "exactly these handlers" wording of §4.5.
func (r *Router) Start() {
	sigs := []os.Signal{syscall.SIGTERM, syscall.SIGCHLD, syscall.SIGUSR1}
	if r.watchWinch {
		sigs = append(sigs, syscall.SIGWINCH)
	}
	signal.Notify(r.sigCh, sigs...)

	go r.loop()
}

// Stop unsubscribes and stops the routing goroutine.
func (r *Router) Stop() {
	signal.Stop(r.sigCh)
	close(r.done)
}

func (r *Router) loop() {
	for {
		select {
		case <-r.done:
			return
		case sig := <-r.sigCh:
			switch sig {
			case syscall.SIGTERM:
				r.forwardToChild(syscall.SIGTERM)
				r.terminated.Store(true)
			case syscall.SIGCHLD:
				r.receivedSIGCHLD.Store(true)
			case syscall.SIGUSR1:
				r.forwardToChild(syscall.SIGTERM)
				if r.onUSR1ResetBurst != nil {
					r.onUSR1ResetBurst()
				}
			case syscall.SIGWINCH:
				r.mirrorWinSize()
			}
		}
	}
}

func (r *Router) forwardToChild(sig syscall.Signal) {
	pid := int(r.childPID.Load())
	if pid <= 0 {
		return
	}
	syscall.Kill(pid, sig)
}

func (r *Router) mirrorWinSize() {
	masterFD := int(r.ptyMasterFD.Load())
	if masterFD < 0 {
		return
	}

	rows, cols, err := coproc.WinSize(0)
	if err != nil {
		return
	}
	coproc.SetWinSize(masterFD, rows, cols)
}
