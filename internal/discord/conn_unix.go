// conn_unix.go implements Discord IPC socket discovery for Unix-like systems
// (Linux, macOS, FreeBSD). Each slot is probed under $XDG_RUNTIME_DIR and
// under /tmp, then the Snap and Flatpak sandbox locations are tried.

//go:build !windows

package discord

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// fallbackSocketDir is probed for every slot, even when XDG_RUNTIME_DIR is set,
// because older Discord builds always create their socket there.
const fallbackSocketDir = "/tmp"

// ///////////////////////////////////////////////
// Candidate Paths
// ///////////////////////////////////////////////

// candidatePaths returns every socket path worth trying, in probe order.
// Slots are visited in ascending order; within a slot the runtime directory
// comes before the fallback directory.
func candidatePaths() []string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = fallbackSocketDir
	}

	var paths []string
	for i := range maxIPCSlots {
		name := "discord-ipc-" + strconv.Itoa(i)
		paths = append(paths, filepath.Join(dir, name))
		if filepath.Clean(dir) != fallbackSocketDir {
			paths = append(paths, filepath.Join(fallbackSocketDir, name))
		}
	}

	// Snap and Flatpak packages place the socket inside an app-scoped directory.
	uid := strconv.Itoa(os.Getuid())
	sandboxDirs := []string{
		"snap.discord",
		"app/com.discordapp.Discord",
	}
	for _, sd := range sandboxDirs {
		for i := range maxIPCSlots {
			paths = append(paths, fmt.Sprintf("/run/user/%s/%s/discord-ipc-%d", uid, sd, i))
		}
	}

	// Under WSL a socat/npiperelay bridge may expose the Windows pipe as a socket.
	paths = append(paths, wslSocketPaths()...)
	return paths
}

// ///////////////////////////////////////////////
// Connection
// ///////////////////////////////////////////////

// connectToDiscord dials each candidate path and returns the first connection
// that succeeds. Missing paths fail immediately, so the per-attempt timeout
// only matters for a socket whose listener is stalled.
func connectToDiscord(perAttempt time.Duration) (net.Conn, error) {
	for _, path := range candidatePaths() {
		conn, err := net.DialTimeout("unix", path, perAttempt)
		if err == nil {
			return conn, nil
		}
	}

	if isWSL() {
		return nil, fmt.Errorf("%w: running under WSL, a socat + npiperelay.exe relay is required", ErrConnectFailed)
	}
	return nil, ErrConnectFailed
}
