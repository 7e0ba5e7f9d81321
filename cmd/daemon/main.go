// Command daemon implements the daemon(8)-style process supervisor:
// steps 1-8 of the orchestrator's startup sequence (privilege drop,
// bootstrap flag parse, chroot, user switch, config-layer resolution,
// sanity check, core-dump toggle, control-plane dispatch) live here
// because they affect the whole process before a Supervisor exists;
// steps 9-17 are internal/supervisor.Run.
//
// Grounded on original_source/daemon/daemon.c's main(), and on
// stephen-fox-cyberdaemon's examples/filewriter/main.go for the overall
// shape of a thin cmd/ entry point delegating to library packages.
package main

import (
	"fmt"
	"os"
	"os/user"
	"runtime/debug"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/coreward/daemon/internal/config"
	"github.com/coreward/daemon/internal/control"
	"github.com/coreward/daemon/internal/options"
	"github.com/coreward/daemon/internal/pidfile"
	"github.com/coreward/daemon/internal/platform"
	"github.com/coreward/daemon/internal/safety"
	"github.com/coreward/daemon/internal/sink"
	"github.com/coreward/daemon/internal/supervisor"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "daemon: "+err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	// Step 1: drop any suid/sgid privilege gained from the binary's
	// file mode bits back to the invoker's real uid/gid. --user (step
	// 4) re-escalates deliberately if the real uid is 0.
	if err := dropSetuidPrivilege(); err != nil {
		return fmt.Errorf("drop setuid privilege: %w", err)
	}

	// Step 2: bootstrap parse.
	boot, err := options.ParseBootstrap(args)
	if err != nil {
		return err
	}

	// Step 3: chroot.
	if boot.Chroot != "" {
		if err := applyChroot(boot.Chroot); err != nil {
			return fmt.Errorf("chroot %q: %w", boot.Chroot, err)
		}
	}

	// Step 4: user switch.
	if boot.User != "" {
		if err := switchUser(boot.User); err != nil {
			return fmt.Errorf("switch to user %q: %w", boot.User, err)
		}
	}

	o := options.Defaults()
	o.BootstrapOnly = boot

	cfs := options.FullFlagSet(&o)
	if err := cfs.FlagSet.Parse(args); err != nil {
		return err
	}
	cfs.FinishParse(&o)
	o.Argv = cfs.FlagSet.Args()
	if o.Command == "" && len(o.Argv) > 0 {
		o.Command, o.Argv = o.Argv[0], o.Argv[1:]
	}

	if o.Help {
		cfs.FlagSet.Usage()
		return nil
	}
	if o.Version {
		printVersion()
		return nil
	}

	// Step 5: config files, generic then name-keyed, then CLI wins
	// again (it was already applied to o above, so re-apply it after
	// the config layer folds in).
	if !o.NoConfig {
		if err := loadConfigLayer(&o); err != nil {
			return err
		}
		// Re-parse CLI onto the config-seeded record so CLI always
		// wins, per §4.9 step 5.
		cfs2 := options.FullFlagSet(&o)
		if err := cfs2.FlagSet.Parse(args); err != nil {
			return err
		}
		cfs2.FinishParse(&o)
	}

	options.ClampBounds(&o, o.Idiot && os.Getuid() == 0)

	// Step 6: sanity check.
	if err := options.SanityCheck(&o); err != nil {
		return err
	}

	// Step 7: core dumps, default disabled.
	if !o.Core || o.NoCore {
		if err := disableCoreDumps(); err != nil {
			return fmt.Errorf("disable core dumps: %w", err)
		}
	}

	// Step 8: control-plane dispatch.
	if o.Running || o.Restart || o.Stop || o.Signal != "" || o.List {
		return dispatchControl(&o)
	}

	log := sink.NewLogger(o.Name, maxInt(o.Verbose, o.Debug))

	s := supervisor.New(&o, log)
	return s.Run()
}

func dropSetuidPrivilege() error {
	gid := unix.Getgid()
	if err := unix.Setgid(gid); err != nil {
		return err
	}
	uid := unix.Getuid()
	return unix.Setuid(uid)
}

func applyChroot(path string) error {
	if err := os.Chdir(path); err != nil {
		return err
	}
	if err := unix.Chroot(path); err != nil {
		return err
	}
	return os.Chdir("/")
}

func switchUser(spec string) error {
	ug, err := options.ParseUserGroup(spec)
	if err != nil {
		return err
	}

	if err := unix.Setgid(ug.GID); err != nil {
		return fmt.Errorf("setgid(%d): %w", ug.GID, err)
	}

	if !ug.GIDSet {
		if err := initSupplementaryGroups(ug.UID); err != nil {
			return err
		}
	}

	if err := unix.Setuid(ug.UID); err != nil {
		return fmt.Errorf("setuid(%d): %w", ug.UID, err)
	}

	return nil
}

func initSupplementaryGroups(uid int) error {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return nil
	}
	groupIDs, err := u.GroupIds()
	if err != nil {
		return nil
	}

	gids := make([]int, 0, len(groupIDs))
	for _, g := range groupIDs {
		n, err := strconv.Atoi(g)
		if err != nil {
			continue
		}
		gids = append(gids, n)
	}
	return unix.Setgroups(gids)
}

func disableCoreDumps() error {
	return unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0})
}

func loadConfigLayer(o *options.Options) error {
	home, _ := os.UserHomeDir()

	var files []*config.File
	if o.Config != "" {
		f, err := loadSingleConfigFile(o.Config)
		if err != nil {
			return err
		}
		files = []*config.File{f}
	} else {
		var err error
		files, err = config.LoadAll(home, safety.Enforced(os.Getuid(), o.Unsafe, o.Safe), func(msg string) {
			fmt.Fprintln(os.Stderr, "daemon: config: "+msg)
		})
		if err != nil {
			return err
		}
	}

	for _, f := range files {
		for _, env := range f.Env {
			os.Setenv(env.Name, env.Value)
		}
		if err := options.ApplyConfigLayer(o, f, o.Name); err != nil {
			return err
		}
	}
	return nil
}

func loadSingleConfigFile(path string) (*config.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()
	return config.Parse(f)
}

func dispatchControl(o *options.Options) error {
	if o.List {
		dir := o.PidfileDir
		if dir == "" {
			dir = platform.SystemDefaultDir(os.Getuid())
		}
		entries, err := control.List(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Println(control.FormatRunning(e.Name, e.Status))
		}
		return nil
	}

	pidPath, err := pidfile.Path(o.Pidfile, o.PidfileDir, o.Name, os.Getuid())
	if err != nil {
		return err
	}

	switch {
	case o.Running:
		status, err := control.Running(pidPath)
		if err != nil {
			return err
		}
		fmt.Println(control.FormatRunning(o.Name, status))
		return nil

	case o.Stop:
		return control.Stop(pidPath)

	case o.Restart:
		return control.Restart(pidPath)

	case o.Signal != "":
		return control.Signal(pidPath, o.Signal)
	}

	return nil
}

func printVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		fmt.Println("daemon (unknown version)")
		return
	}
	fmt.Printf("daemon %s\n", info.Main.Version)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
