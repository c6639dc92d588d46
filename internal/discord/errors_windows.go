//go:build windows

package discord

import (
	"errors"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

// isBrokenPipe reports whether err means the Discord end of the named pipe
// has gone away.
func isBrokenPipe(err error) bool {
	return errors.Is(err, windows.ERROR_BROKEN_PIPE) ||
		errors.Is(err, windows.ERROR_NO_DATA) ||
		errors.Is(err, windows.ERROR_PIPE_NOT_CONNECTED) ||
		errors.Is(err, winio.ErrFileClosed)
}
