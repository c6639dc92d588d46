//go:build !windows

package discord

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isBrokenPipe reports whether err carries an errno meaning the peer end of
// the socket is gone.
func isBrokenPipe(err error) bool {
	return errors.Is(err, unix.EPIPE) ||
		errors.Is(err, unix.ECONNRESET) ||
		errors.Is(err, unix.ENOTCONN) ||
		errors.Is(err, unix.ECONNABORTED)
}
