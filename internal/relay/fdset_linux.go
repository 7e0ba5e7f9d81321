package relay

import "golang.org/x/sys/unix"

func setFD(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func isFDSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

// veofChar reads the PTY master's termios to find the configured VEOF
// character, so stdin EOF can be relayed as a real end-of-input signal
// rather than a raw byte the child's line discipline might misinterpret.
func veofChar(fd int) (byte, bool) {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return 0, false
	}
	return termios.Cc[unix.VEOF], true
}
