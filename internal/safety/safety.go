// Package safety implements the safe-execution gate (§4.1): deciding
// whether a path - a config file or a client executable - is safe to
// trust, given the current privilege level.
//
// Grounded on original_source/daemon/daemon.c's safety_check,
// safety_check_script and the (unexported, libslack-backed)
// daemon_path_is_safe/daemon_absolute_path helpers it calls. The directory
// walk, the #! interpreter inspection, the "/usr/bin/env cmd" special
// case, and the $PATH search with its EACCES-continues/ENOEXEC-stops rule
// are all ported line for line from those functions.
package safety

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Verdict is the outcome of a Check.
type Verdict struct {
	Safe   bool
	Reason string // populated when Safe is false
}

const (
	defaultRootPath = "/bin:/usr/bin"
	defaultUserPath  = ":/bin:/usr/bin"
	maxShebangBytes  = 256
)

// Enforced reports whether safety enforcement applies given the real uid
// and the operator's --unsafe/--safe toggles, per §4.1's rule: enforced
// when uid==0 and --unsafe was not given, OR --safe was given.
func Enforced(uid int, unsafe, safe bool) bool {
	if safe {
		return true
	}
	return uid == 0 && !unsafe
}

// CheckPath determines whether path, taken as a literal filesystem path
// (already resolved, not searched for in $PATH), is safe: every directory
// component, followed through symlinks, must not be group- or
// world-writable, and neither must the final entry.
func CheckPath(path string) (Verdict, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Verdict{}, fmt.Errorf("safety: resolve absolute path for %q: %w", path, err)
	}

	cur := string(filepath.Separator)
	parts := strings.Split(strings.TrimPrefix(abs, string(filepath.Separator)), string(filepath.Separator))

	for i, part := range parts {
		if part == "" {
			continue
		}
		cur = filepath.Join(cur, part)

		resolved, err := filepath.EvalSymlinks(cur)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Verdict{}, fmt.Errorf("safety: stat %q: %w", cur, err)
			}
			return Verdict{}, fmt.Errorf("safety: resolve symlinks for %q: %w", cur, err)
		}

		info, err := os.Lstat(resolved)
		if err != nil {
			return Verdict{}, fmt.Errorf("safety: stat %q: %w", resolved, err)
		}

		if writableByGroupOrOther(info.Mode()) {
			kind := "directory"
			if i == len(parts)-1 {
				kind = "file"
			}
			return Verdict{Safe: false, Reason: fmt.Sprintf("%s %q is group- or world-writable", kind, resolved)}, nil
		}
	}

	return Verdict{Safe: true}, nil
}

func writableByGroupOrOther(mode fs.FileMode) bool {
	return mode.Perm()&0o022 != 0
}

// CheckExecutable determines whether cmd is safe to execute: cmd must
// resolve (directly, or via $PATH search) to a safe path, and if it is a
// script with a #! line, the interpreter (and, for "/usr/bin/env cmd"
// scripts, the real interpreter found via $PATH) must also be safe.
//
// cmd is resolved the same way the coprocess launcher (§4.4) resolves it:
// absolute/relative paths (containing '/') are checked directly; bare
// names are searched for in $PATH using the uid-appropriate default path
// table when $PATH is unset.
func CheckExecutable(cmd string, uid int) (Verdict, error) {
	if strings.ContainsRune(cmd, os.PathSeparator) {
		resolved, err := filepath.Abs(cmd)
		if err != nil {
			return Verdict{}, err
		}
		return checkResolvedExecutable(resolved, uid)
	}

	path := os.Getenv("PATH")
	if path == "" {
		if uid == 0 {
			path = defaultRootPath
		} else {
			path = defaultUserPath
		}
	}

	for _, dir := range strings.Split(path, ":") {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, cmd)

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				continue
			}
			return Verdict{}, fmt.Errorf("safety: stat %q: %w", candidate, err)
		}

		if info.Mode()&0o111 == 0 {
			continue
		}

		return checkResolvedExecutable(candidate, uid)
	}

	return Verdict{}, fmt.Errorf("safety: %q not found in PATH", cmd)
}

func checkResolvedExecutable(path string, uid int) (Verdict, error) {
	verdict, err := CheckPath(path)
	if err != nil || !verdict.Safe {
		return verdict, err
	}

	return checkScript(path, uid)
}

// checkScript inspects the first maxShebangBytes bytes of path. If they
// begin with "#!", the interpreter token is extracted and must itself
// pass CheckPath; if the interpreter is exactly "/usr/bin/env" followed
// by whitespace and a command word, that command word must also resolve
// safely via $PATH.
func checkScript(path string, uid int) (Verdict, error) {
	f, err := os.Open(path)
	if err != nil {
		// Scripts without read permission simply can't be introspected;
		// the coprocess launcher's own exec attempt will fail safely
		// later. Not a safety violation.
		return Verdict{Safe: true}, nil
	}
	defer f.Close()

	buf := make([]byte, maxShebangBytes)
	n, _ := bufio.NewReader(f).Read(buf)
	buf = buf[:n]

	if n < 2 || buf[0] != '#' || buf[1] != '!' {
		return Verdict{Safe: true}, nil
	}

	line := string(buf[2:])
	if idx := strings.IndexAny(line, " \t\n"); idx >= 0 {
		line = line[:idx]
	}
	interp := strings.TrimSpace(line)
	if interp == "" {
		return Verdict{Safe: true}, nil
	}

	verdict, err := CheckPath(interp)
	if err != nil || !verdict.Safe {
		return verdict, err
	}

	if interp == "/usr/bin/env" {
		rest := string(buf[2+len(line):])
		rest = strings.TrimLeft(rest, " \t")
		if end := strings.IndexAny(rest, " \t\n"); end >= 0 {
			rest = rest[:end]
		}
		rest = strings.TrimSpace(rest)
		if rest != "" {
			return CheckExecutable(rest, uid)
		}
	}

	return Verdict{Safe: true}, nil
}
