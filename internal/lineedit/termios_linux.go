//go:build linux

package lineedit

import "golang.org/x/sys/unix"

// getVerase reads the terminal's configured erase-character byte
// (VERASE in termios c_cc), used to recognize backspace regardless of
// what the terminal driver was told to send for it.
func getVerase(fd int) (byte, bool) {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return 0, false
	}
	return termios.Cc[unix.VERASE], true
}
