// Package options implements the resolved option record (§4.9 steps
// 2-6): command-line flags parsed onto the built-in defaults, then
// folded together with the config layer (generic `*` entries first,
// then name-keyed ones), then command-line flags re-applied so they
// always win, per the Open Question decision recorded in DESIGN.md.
//
// Grounded on original_source/daemon/daemon.c's option table and
// sanity_check. CLI flags are parsed with github.com/spf13/pflag
// (surfaced from System233-enkit's faketree.go and lib/kflags/kcobra),
// which gives the GNU long/short option forms §6 specifies.
package options

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/coreward/daemon/internal/config"
	"github.com/coreward/daemon/internal/respawn"
)

// BootstrapOnly are the seven options §4.9 step 2 says are legal only on
// the command line, never inside config files.
type BootstrapOnly struct {
	Chroot   string
	User     string
	Config   string
	NoConfig bool
	Name     string
	Idiot    bool
	Unsafe   bool
}

// Options is the fully resolved, layered option record consumed by the
// supervisor orchestrator (C9).
type Options struct {
	BootstrapOnly

	Command string
	Argv    []string

	ChdirPath string
	Umask     string
	Env       []string
	Inherit   bool
	Safe      bool

	Respawn bool
	respawn.Bounds

	Foreground bool
	PTY        bool
	PTYNoEcho  bool
	Bind       bool

	ErrLog string
	DbgLog string
	Output string
	Stdout string
	Stderr string

	IgnoreEOF bool
	ReadEOF   bool

	Running bool
	Restart bool
	Stop    bool
	Signal  string
	List    bool

	Help    bool
	Version bool
	Verbose int
	Debug   int

	Core   bool
	NoCore bool

	PidfileDir string
	Pidfile    string
}

// Defaults returns the built-in defaults layer (innermost).
func Defaults() Options {
	o := Options{}
	o.Bounds = respawn.DefaultBounds()
	return o
}

// ParseBootstrap does the first-pass CLI parse of §4.9 step 2: just
// enough to learn --chroot/--user/--config/--noconfig/--name and the
// idiot/unsafe toggles, ignoring unknown flags so the full flag set
// doesn't need to exist yet.
func ParseBootstrap(args []string) (BootstrapOnly, error) {
	fs := pflag.NewFlagSet("daemon-bootstrap", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true

	var b BootstrapOnly
	fs.StringVarP(&b.Chroot, "chroot", "R", "", "")
	fs.StringVarP(&b.User, "user", "u", "", "")
	fs.StringVarP(&b.Config, "config", "C", "", "")
	fs.BoolVarP(&b.NoConfig, "noconfig", "N", false, "")
	fs.StringVarP(&b.Name, "name", "n", "", "")
	fs.BoolVar(&b.Idiot, "idiot", false, "")
	fs.BoolVarP(&b.Unsafe, "unsafe", "U", false, "")

	if err := fs.Parse(args); err != nil {
		return BootstrapOnly{}, err
	}
	return b, nil
}

// CLIFlagSet bundles the full pflag.FlagSet together with the scratch
// variables that need post-Parse reconciliation: pflag has no
// seconds-to-time.Duration convenience, and --pty takes an optional
// "=noecho" sub-value pflag models as a plain string.
type CLIFlagSet struct {
	FlagSet       *pflag.FlagSet
	acceptableSec int
	delaySec      int
	ptySpec       string
}

// FullFlagSet builds the complete CLI surface described in §6, seeded
// from o's current values (so a second-pass parse after config loading
// still shows the right defaults in --help).
func FullFlagSet(o *Options) *CLIFlagSet {
	fs := pflag.NewFlagSet("daemon", pflag.ContinueOnError)
	cfs := &CLIFlagSet{FlagSet: fs}

	fs.StringVarP(&o.Name, "name", "n", o.Name, "named instance")
	fs.StringVarP(&o.Command, "command", "X", o.Command, "command to run")
	fs.StringVarP(&o.Config, "config", "C", o.Config, "config file path")
	fs.BoolVarP(&o.NoConfig, "noconfig", "N", o.NoConfig, "skip config files")
	fs.StringVarP(&o.PidfileDir, "pidfiles", "P", o.PidfileDir, "pidfile directory")
	fs.StringVarP(&o.Pidfile, "pidfile", "F", o.Pidfile, "explicit pidfile path")

	fs.StringVarP(&o.User, "user", "u", o.User, "user[:group] to run as")
	fs.StringVarP(&o.Chroot, "chroot", "R", o.Chroot, "chroot path")
	fs.StringVarP(&o.ChdirPath, "chdir", "D", o.ChdirPath, "working directory")
	fs.StringVarP(&o.Umask, "umask", "m", o.Umask, "octal umask")
	fs.StringArrayVarP(&o.Env, "env", "e", o.Env, "VAR=VAL (repeatable)")
	fs.BoolVarP(&o.Inherit, "inherit", "i", o.Inherit, "inherit environment")
	fs.BoolVarP(&o.Unsafe, "unsafe", "U", o.Unsafe, "disable safety checks")
	fs.BoolVarP(&o.Safe, "safe", "S", o.Safe, "force safety checks")
	fs.BoolVarP(&o.Core, "core", "c", o.Core, "allow core dumps")
	fs.BoolVar(&o.NoCore, "nocore", o.NoCore, "disable core dumps")

	fs.BoolVarP(&o.Respawn, "respawn", "r", o.Respawn, "respawn the child")
	cfs.acceptableSec = int(o.AcceptableSec.Seconds())
	fs.IntVarP(&cfs.acceptableSec, "acceptable", "a", cfs.acceptableSec, "acceptable run length, seconds")
	fs.IntVarP(&o.AttemptsMax, "attempts", "A", o.AttemptsMax, "attempts per burst")
	cfs.delaySec = int(o.DelaySec.Seconds())
	fs.IntVarP(&cfs.delaySec, "delay", "L", cfs.delaySec, "delay between bursts, seconds")
	fs.IntVarP(&o.LimitBursts, "limit", "M", o.LimitBursts, "max bursts before giving up")
	fs.BoolVar(&o.Idiot, "idiot", o.Idiot, "widen respawn bounds for uid 0")

	fs.BoolVarP(&o.Foreground, "foreground", "f", o.Foreground, "stay in foreground")
	fs.StringVarP(&cfs.ptySpec, "pty", "p", "", "attach a PTY, optionally =noecho")
	fs.Lookup("pty").NoOptDefVal = "echo"
	fs.BoolVarP(&o.Bind, "bind", "B", o.Bind, "bind to the logind session")

	fs.StringVarP(&o.ErrLog, "errlog", "l", o.ErrLog, "error log sink")
	fs.StringVarP(&o.DbgLog, "dbglog", "b", o.DbgLog, "debug log sink")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "combined output sink")
	fs.StringVarP(&o.Stdout, "stdout", "O", o.Stdout, "stdout sink")
	fs.StringVarP(&o.Stderr, "stderr", "E", o.Stderr, "stderr sink")

	fs.BoolVar(&o.IgnoreEOF, "ignore-eof", o.IgnoreEOF, "reap immediately on SIGCHLD")
	fs.BoolVar(&o.ReadEOF, "read-eof", o.ReadEOF, "drain output to EOF before reaping")

	fs.BoolVar(&o.Running, "running", o.Running, "probe whether the named instance is running")
	fs.BoolVar(&o.Restart, "restart", o.Restart, "restart the named instance's child")
	fs.BoolVar(&o.Stop, "stop", o.Stop, "stop the named instance")
	fs.StringVar(&o.Signal, "signal", o.Signal, "send a named signal to the client")
	fs.BoolVar(&o.List, "list", o.List, "list named instances")

	fs.BoolVarP(&o.Help, "help", "h", o.Help, "show usage")
	fs.BoolVarP(&o.Version, "version", "V", o.Version, "show version")
	fs.CountVarP(&o.Verbose, "verbose", "v", "increase verbosity")
	fs.CountVarP(&o.Debug, "debug", "d", "increase debug verbosity")

	return cfs
}

// FinishParse reconciles the scratch fields (acceptable/delay seconds,
// --pty's sub-value) back into o after a successful FlagSet.Parse.
func (cfs *CLIFlagSet) FinishParse(o *Options) {
	o.AcceptableSec = time.Duration(cfs.acceptableSec) * time.Second
	o.DelaySec = time.Duration(cfs.delaySec) * time.Second

	if cfs.FlagSet.Changed("pty") {
		o.PTY = true
		o.PTYNoEcho = strings.EqualFold(cfs.ptySpec, "noecho")
	}
}

// ApplyConfigLayer merges a config file's parsed contents into o,
// generic (*) entries first, then entries keyed by name, per §4.9 step
// 5. Env assignments are putenv'd by the caller; this only folds option
// sets into the record.
func ApplyConfigLayer(o *Options, f *config.File, name string) error {
	for _, set := range f.Options {
		if set.Name != "*" {
			continue
		}
		if err := applyOptionSet(o, set); err != nil {
			return err
		}
	}
	for _, set := range f.Options {
		if set.Name == name && name != "" {
			if err := applyOptionSet(o, set); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyOptionSet(o *Options, set config.OptionSet) error {
	for _, opt := range set.Options {
		if err := applyOption(o, opt); err != nil {
			return err
		}
	}
	return nil
}

// applyOption maps one config-file long-option-name onto the Options
// record. Bootstrap-only options are rejected here per §4.9 step 2's
// "only on the command line" rule.
func applyOption(o *Options, opt config.Option) error {
	switch opt.Name {
	case "chroot", "user", "config", "noconfig", "name", "idiot", "unsafe":
		return fmt.Errorf("options: %q is only valid on the command line", opt.Name)

	case "respawn":
		o.Respawn = true
	case "acceptable":
		n, err := strconv.Atoi(opt.Value)
		if err != nil {
			return fmt.Errorf("options: acceptable=%q: %w", opt.Value, err)
		}
		o.AcceptableSec = time.Duration(n) * time.Second
	case "attempts":
		n, err := strconv.Atoi(opt.Value)
		if err != nil {
			return fmt.Errorf("options: attempts=%q: %w", opt.Value, err)
		}
		o.AttemptsMax = n
	case "delay":
		n, err := strconv.Atoi(opt.Value)
		if err != nil {
			return fmt.Errorf("options: delay=%q: %w", opt.Value, err)
		}
		o.DelaySec = time.Duration(n) * time.Second
	case "limit":
		n, err := strconv.Atoi(opt.Value)
		if err != nil {
			return fmt.Errorf("options: limit=%q: %w", opt.Value, err)
		}
		o.LimitBursts = n

	case "foreground":
		o.Foreground = true
	case "pty":
		o.PTY = true
		o.PTYNoEcho = strings.EqualFold(opt.Value, "noecho")
	case "bind":
		o.Bind = true

	case "errlog":
		o.ErrLog = opt.Value
	case "dbglog":
		o.DbgLog = opt.Value
	case "output":
		o.Output = opt.Value
	case "stdout":
		o.Stdout = opt.Value
	case "stderr":
		o.Stderr = opt.Value

	case "chdir":
		o.ChdirPath = opt.Value
	case "umask":
		o.Umask = opt.Value
	case "env":
		o.Env = append(o.Env, opt.Value)
	case "inherit":
		o.Inherit = true
	case "safe":
		o.Safe = true
	case "core":
		o.Core = true
	case "nocore":
		o.NoCore = true

	case "ignore-eof":
		o.IgnoreEOF = true
	case "read-eof":
		o.ReadEOF = true

	case "command":
		o.Command = opt.Value
	case "pidfiles":
		o.PidfileDir = opt.Value
	case "pidfile":
		o.Pidfile = opt.Value

	default:
		return fmt.Errorf("options: unknown config option %q", opt.Name)
	}
	return nil
}
