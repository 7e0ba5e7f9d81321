package coproc

import (
	"os"

	"golang.org/x/sys/unix"
)

// disableEcho clears ECHO on the given terminal - the PTY master,
// or the slave under --pty=noecho - so the coprocess's own tty driver
// echo isn't doubled by whatever is relaying bytes in from the
// controlling terminal (§4.4, cross-referenced by the discussion in
// §4.7).
func disableEcho(master *os.File) error {
	fd := int(master.Fd())

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}

	termios.Lflag &^= unix.ECHO
	return unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}

// WinSize returns the window size of the terminal at fd; the WINCH
// handling (§4.5) copies it onto the PTY master with SetWinSize.
func WinSize(fd int) (rows, cols uint16, err error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return ws.Row, ws.Col, nil
}

// SetWinSize applies rows/cols to the PTY master at fd.
func SetWinSize(fd int, rows, cols uint16) error {
	ws := &unix.Winsize{Row: rows, Col: cols}
	return unix.IoctlSetWinsize(fd, unix.TIOCSWINSZ, ws)
}
