// Package supervisor implements the top-level orchestrator (C9): steps
// 9-17 of the startup sequence (steps 1-8 live in cmd/daemon) and the
// spawn/relay/reap/respawn run loop that ties every other package
// together.
//
// Grounded on original_source/daemon/daemon.c's main() and daemon_init,
// generalized into an owned Supervisor record built in cmd/daemon and
// passed into each subsystem, per the module-global-mutable-state
// re-architecture note: the signal router is the one legitimate
// process-scoped handle with atomic fields, everything else is data
// this struct owns outright.
package supervisor

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/coreward/daemon/internal/coproc"
	"github.com/coreward/daemon/internal/daemonize"
	"github.com/coreward/daemon/internal/expand"
	"github.com/coreward/daemon/internal/options"
	"github.com/coreward/daemon/internal/pidfile"
	"github.com/coreward/daemon/internal/relay"
	"github.com/coreward/daemon/internal/respawn"
	"github.com/coreward/daemon/internal/safety"
	"github.com/coreward/daemon/internal/sigctl"
	"github.com/coreward/daemon/internal/sink"
)

// Supervisor owns everything a run needs: resolved options, the
// acquired pidfile lock, the signal router, the respawn controller, and
// the configured sinks. Built once in cmd/daemon and driven through Run.
type Supervisor struct {
	Opts *options.Options
	Log  *logrus.Entry

	lock    *pidfile.Lock
	router  *sigctl.Router
	respawn *respawn.Controller

	fileSink   *sink.FileSink
	syslogSink *sink.SyslogSink

	ttyState *term.State
}

// New builds a Supervisor from fully-resolved options. It does not yet
// touch the filesystem or fork anything - that happens in Run.
func New(opts *options.Options, log *logrus.Entry) *Supervisor {
	return &Supervisor{
		Opts:    opts,
		Log:     log,
		respawn: respawn.New(opts.Bounds, time.Now),
	}
}

// Run executes steps 9-17 of §4.9: compose the pidfile path, daemonize
// or lock in place, register cleanup, apply umask/chdir, configure
// sinks, install signal handlers, and enter the spawn/relay/reap loop.
// Steps 1-8 (privilege drop, option parse, chroot, user, config, sanity
// check, core-dump toggle, control-plane dispatch) are the caller's
// responsibility in cmd/daemon, since they must run before any
// Supervisor exists (chroot/setuid affect the whole process, not just
// this subsystem).
func (s *Supervisor) Run() error {
	uid := os.Getuid()

	pidPath, err := pidfile.Path(s.Opts.Pidfile, s.Opts.PidfileDir, s.Opts.Name, uid)
	if err != nil {
		return err
	}

	superServer := daemonize.InSuperServerMode()

	lockFn := func() error {
		lock, err := pidfile.Acquire(pidPath, os.Getpid())
		if err != nil {
			return err
		}
		s.lock = lock
		return nil
	}

	if !s.Opts.Foreground {
		result, err := daemonize.Run(superServer, lockFn)
		if err != nil {
			return fmt.Errorf("supervisor: daemonize: %w", err)
		}
		if !result.Reexeced {
			// Only the original (pre-re-exec) process gets Reexeced
			// false, and it exits inside daemonize.Run rather than
			// returning nil; super-server mode returns Reexeced true.
			return nil
		}
	} else {
		if err := lockFn(); err != nil {
			return fmt.Errorf("supervisor: acquire pidfile: %w", err)
		}
	}
	defer s.cleanup()

	if s.Opts.ChdirPath != "" {
		if err := os.Chdir(s.Opts.ChdirPath); err != nil {
			return fmt.Errorf("supervisor: chdir %q: %w", s.Opts.ChdirPath, err)
		}
	}
	if s.Opts.Umask != "" {
		mask, err := strconv.ParseUint(s.Opts.Umask, 8, 32)
		if err != nil {
			return fmt.Errorf("supervisor: invalid --umask %q: %w", s.Opts.Umask, err)
		}
		unix.Umask(int(mask))
	}

	if err := s.configureSinks(); err != nil {
		return err
	}

	s.router = sigctl.New(s.Opts.PTY && term.IsTerminal(0), s.respawn.Reset)
	s.router.Start()
	defer s.router.Stop()

	// Step 15: foreground + TTY stdin gets raw mode for the duration of
	// the run, restored on exit.
	if s.Opts.Foreground && term.IsTerminal(0) {
		state, err := term.MakeRaw(0)
		if err != nil {
			return fmt.Errorf("supervisor: set stdin raw mode: %w", err)
		}
		s.ttyState = state
	}

	return s.runLoop()
}

func (s *Supervisor) cleanup() {
	if s.ttyState != nil {
		term.Restore(0, s.ttyState)
	}
	if s.lock != nil {
		s.lock.Release()
	}
	if s.fileSink != nil {
		s.fileSink.Close()
	}
	if s.syslogSink != nil {
		s.syslogSink.Close()
	}
}

// configureSinks opens the client-output file sink (from whichever of
// --output/--stdout/--stderr was given, preferring --output when
// several are) and the client-output syslog sink (from --errlog). Each
// spec is either a facility.priority pair or a file path per §6; only
// the file-path form makes sense for combined output, so a
// facility.priority value given to --output/--stdout/--stderr is
// routed to syslog instead.
func (s *Supervisor) configureSinks() error {
	fileSpec := firstNonEmpty(s.Opts.Output, s.Opts.Stdout, s.Opts.Stderr)
	if fileSpec != "" {
		if _, err := sink.ParseSpec(fileSpec); err == nil {
			ss, err := sink.OpenSyslog(fileSpec, s.Opts.Name)
			if err != nil {
				return err
			}
			s.syslogSink = ss
		} else {
			fs, err := sink.OpenFile(expand.Expand(fileSpec, envExpansionEnabled(s.Opts)))
			if err != nil {
				return err
			}
			s.fileSink = fs
		}
	}

	if s.Opts.ErrLog != "" && s.syslogSink == nil {
		ss, err := sink.OpenSyslog(s.Opts.ErrLog, s.Opts.Name)
		if err != nil {
			return err
		}
		s.syslogSink = ss
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// envExpansionEnabled mirrors §4.10's uid-0-unless-idiot gating.
func envExpansionEnabled(o *options.Options) bool {
	return os.Getuid() != 0 || o.Idiot
}

// runLoop implements step 17: spawn, relay, reap, respawn/exit.
func (s *Supervisor) runLoop() error {
	for {
		res, err := launch(s.Opts)
		if err != nil {
			return err
		}

		var pid int
		var masterFD = -1
		var relayCfg relay.Config

		if s.Opts.PTY {
			pid = res.pty.Cmd.Process.Pid
			masterFD = int(res.pty.Master.Fd())
			relayCfg = relay.Config{
				Foreground:  s.Opts.Foreground,
				PTYMasterFD: masterFD,
				Mirror:      s.Opts.Foreground,
				FileSink:    sinkOrNil(s.fileSink),
				SyslogSink:  syslogOrNil(s.syslogSink),
				IgnoreEOF:   s.Opts.IgnoreEOF,
			}
		} else {
			pid = res.pipe.Cmd.Process.Pid
			relayCfg = relay.Config{
				Foreground:  s.Opts.Foreground,
				PTYMasterFD: -1,
				ChildStdout: res.pipe.Stdout,
				ChildStderr: res.pipe.Stderr,
				ChildStdin:  res.pipe.Stdin,
				Mirror:      s.Opts.Foreground,
				FileSink:    sinkOrNil(s.fileSink),
				SyslogSink:  syslogOrNil(s.syslogSink),
				IgnoreEOF:   s.Opts.IgnoreEOF,
			}
		}

		s.router.SetChildPID(pid)
		s.router.SetPTYMasterFD(masterFD)
		if err := pidfile.WriteClientPID(s.lock.ClientPath(), pid); err != nil {
			s.Log.WithError(err).Warn("failed to write clientpid")
		}

		rl := relay.New(relayCfg)
		if err := rl.Run(s.router); err != nil {
			s.Log.WithError(err).Warn("relay loop exited with error")
		}

		reapResult, err := relay.Reap(pid, s.router)
		if err != nil {
			s.Log.WithError(err).Warn("reap failed")
		}
		if err := pidfile.RemoveClientPID(s.lock.ClientPath()); err != nil {
			s.Log.WithError(err).Warn("failed to remove clientpid")
		}
		s.logTermination(reapResult)

		if s.router.Terminated() {
			return nil
		}
		if !s.Opts.Respawn {
			if reapResult.Signaled || reapResult.ExitCode != 0 {
				return fmt.Errorf("supervisor: client exited abnormally")
			}
			return nil
		}

		if err := s.respawn.Record(s.interruptibleSleep); err != nil {
			return err
		}
	}
}

func (s *Supervisor) logTermination(r relay.ReapResult) {
	switch {
	case r.Signaled:
		s.Log.Warnf("client pid %d terminated by signal %d", r.Pid, r.Signal)
	case r.Stopped:
		s.Log.Warnf("client pid %d stopped unexpectedly", r.Pid)
	default:
		s.Log.Infof("client pid %d exited with code %d", r.Pid, r.ExitCode)
	}
}

// interruptibleSleep implements the respawn delay's "handle signals
// during sleep" requirement: TERM causes fatal exit, any other wakeup
// just loops.
func (s *Supervisor) interruptibleSleep(d time.Duration) error {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		if s.router.Terminated() {
			return fmt.Errorf("supervisor: terminated during respawn delay")
		}
		sleepChunk := remaining
		if sleepChunk > 500*time.Millisecond {
			sleepChunk = 500 * time.Millisecond
		}
		time.Sleep(sleepChunk)
	}
}

func sinkOrNil(s *sink.FileSink) relay.Sink {
	if s == nil {
		return nil
	}
	return s
}

func syslogOrNil(s *sink.SyslogSink) relay.LineSink {
	if s == nil {
		return nil
	}
	return s
}

type launchResult struct {
	pipe *coproc.PipeResult
	pty  *coproc.PTYResult
}

// launch resolves the command per §4.4, runs the safety gate when
// safety.Enforced says it applies (uid 0 without --unsafe, or --safe),
// and starts the child in pipe or PTY mode.
func launch(o *options.Options) (launchResult, error) {
	pathDirs := defaultPathDirs(os.Getuid())

	res, err := coproc.Resolve(o.Command, o.Argv, pathDirs)
	if err != nil {
		return launchResult{}, err
	}

	if safety.Enforced(os.Getuid(), o.Unsafe, o.Safe) {
		verdict, err := safety.CheckExecutable(res.Path, os.Getuid())
		if err != nil {
			return launchResult{}, err
		}
		if !verdict.Safe {
			return launchResult{}, fmt.Errorf("supervisor: refusing unsafe executable %q: %s", res.Path, verdict.Reason)
		}
	}

	env := buildChildEnv(o)

	if o.PTY {
		ptyRes, err := coproc.LaunchPTY(res, env, nil, o.PTYNoEcho)
		if err != nil {
			return launchResult{}, err
		}
		return launchResult{pty: ptyRes}, nil
	}

	pipeRes, err := coproc.LaunchPipe(res, env, nil)
	if err != nil {
		return launchResult{}, err
	}
	return launchResult{pipe: pipeRes}, nil
}

func defaultPathDirs(uid int) []string {
	if uid == 0 {
		return []string{"/bin", "/usr/bin"}
	}
	return []string{os.Getenv("HOME") + "/bin", "/bin", "/usr/bin"}
}

func buildChildEnv(o *options.Options) []string {
	env := os.Environ()
	if !o.Inherit {
		env = nil
	}
	for _, kv := range o.Env {
		env = append(env, expand.Expand(kv, envExpansionEnabled(o)))
	}
	return env
}
