// conn_windows.go implements Discord IPC endpoint discovery for Windows.
// It connects via named pipes (\\.\pipe\discord-ipc-N) using the go-winio
// library.

//go:build windows

package discord

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// ///////////////////////////////////////////////
// Connection
// ///////////////////////////////////////////////

// connectToDiscord tries each Discord named pipe slot, waiting up to
// perAttempt for a busy pipe to become available, and returns the first
// successful connection.
func connectToDiscord(perAttempt time.Duration) (net.Conn, error) {
	for i := range maxIPCSlots {
		timeout := perAttempt
		conn, err := winio.DialPipe(fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i), &timeout)
		if err == nil {
			return conn, nil
		}
	}
	return nil, ErrConnectFailed
}
