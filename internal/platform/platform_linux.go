// Package platform answers the few "what OS/init system am I running
// under" questions the supervisor needs: the system pidfile directory
// convention (§4.2) and whether systemd appears to manage the host.
// IsSystemd is not called by the other packages.
//
// Grounded on stephen-fox-cyberdaemon/internal/osutil: IsSystemd here is
// the same "find systemctl, run it, check the exit code" probe that file
// used to decide which Linux init system owned the daemon. We keep only
// that probe; the chkconfig/update-rc.d/System V init.d script machinery
// that used to live alongside it has no home in this tool (we never
// install an init.d script - see DESIGN.md).
package platform

import (
	"os"
	"os/exec"
)

const systemctlExeName = "systemctl"

var systemctlExeDirPaths = []string{"/bin", "/usr/bin"}

// IsSystemd reports whether systemd appears to be managing this host.
func IsSystemd() bool {
	systemctlPath, err := searchForExeInPaths(systemctlExeName, systemctlExeDirPaths)
	if err != nil {
		return false
	}

	cmd := exec.Command(systemctlPath, "is-system-running")
	// "degraded" is a valid systemd state and still exits non-zero;
	// presence of the binary plus a clean invocation is enough for our
	// purposes, we are not validating service state.
	_ = cmd.Run()
	if cmd.ProcessState == nil {
		return false
	}

	switch cmd.ProcessState.ExitCode() {
	case 0, 1:
		return true
	default:
		return false
	}
}

// SystemDefaultDir returns the system-wide pidfile directory convention
// for this OS, used when neither --pidfiles nor --pidfile is given.
func SystemDefaultDir(uid int) string {
	if uid == 0 {
		return "/var/run"
	}
	return "/tmp"
}

func searchForExeInPaths(exeName string, dirSearchPaths []string) (string, error) {
	for _, dir := range dirSearchPaths {
		p := dir + "/" + exeName
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", os.ErrNotExist
}
