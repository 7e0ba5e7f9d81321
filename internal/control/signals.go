// Package control implements the one-shot control-plane operations
// (C8): --running, --stop, --restart, --signal and --list, each of
// which addresses an already-running named supervisor through its
// pidfile rather than starting a new one.
//
// Grounded on original_source/daemon/daemon.c's command-dispatch
// handling for these five flags.
package control

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"
)

// signalTable is the fixed, case-insensitive name table from §4.8,
// filtered per-GOOS by the build-constrained files signals_linux.go,
// signals_darwin.go and signals_other.go (some of these, e.g. STKFLT,
// only exist on Linux).
var signalTable = buildSignalTable()

// ResolveSignal parses a --signal NAME argument: a name from signalTable
// (with or without a leading "sig", case-insensitive) or a bare decimal
// number in [1, 63]. The number is not checked against the platform's
// own signal count.
func ResolveSignal(spec string) (syscall.Signal, error) {
	if n, err := strconv.Atoi(spec); err == nil {
		if n <= 0 || n >= 64 {
			return 0, fmt.Errorf("control: signal number %d out of range", n)
		}
		return syscall.Signal(n), nil
	}

	name := strings.ToLower(spec)
	name = strings.TrimPrefix(name, "sig")

	sig, ok := signalTable[name]
	if !ok {
		return 0, fmt.Errorf("control: unknown signal name %q", spec)
	}
	return sig, nil
}
