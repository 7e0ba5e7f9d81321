package relay

import "golang.org/x/sys/unix"

func setFD(set *unix.FdSet, fd int) {
	set.Bits[fd/32] |= 1 << (uint(fd) % 32)
}

func isFDSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/32]&(1<<(uint(fd)%32)) != 0
}

// veofChar reads the PTY master's termios to find the configured VEOF
// character via the BSD TIOCGETA ioctl.
func veofChar(fd int) (byte, bool) {
	termios, err := unix.IoctlGetTermios(fd, unix.TIOCGETA)
	if err != nil {
		return 0, false
	}
	return termios.Cc[unix.VEOF], true
}
