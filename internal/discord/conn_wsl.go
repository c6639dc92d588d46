// conn_wsl.go provides WSL-specific Discord IPC socket discovery.
//
// When running inside WSL (Windows Subsystem for Linux), Discord runs on the
// Windows host side. Its IPC socket is a Windows named pipe (\\.\pipe\discord-ipc-N),
// which is not directly accessible from WSL2 as a Unix socket.
//
// WSL1 may expose Windows named pipes transparently, but WSL2 does not.
// For WSL2, users need to set up a relay using socat + npiperelay.exe:
//
//	socat UNIX-LISTEN:/tmp/discord-ipc-0,fork EXEC:"npiperelay.exe -ep -s //./pipe/discord-ipc-0"
//
// The relay socket usually lands in /tmp, which candidatePaths already covers.
// This file adds the less common relay locations. If no relay is running the
// paths do not exist and the connection falls through to ErrConnectFailed.

//go:build linux

package discord

import (
	"fmt"
	"os"
	"strings"
)

// isWSL reports whether the current process is running inside WSL.
func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	lower := strings.ToLower(string(data))
	return strings.Contains(lower, "microsoft")
}

// wslSocketPaths returns extra relay socket paths to try when running under
// WSL: a per-user /run/user/<uid> directory and the WSLg runtime directory.
func wslSocketPaths() []string {
	if !isWSL() {
		return nil
	}

	var paths []string
	dirs := []string{
		fmt.Sprintf("/run/user/%d", os.Getuid()),
		"/mnt/wslg/runtime-dir",
	}
	for _, dir := range dirs {
		for i := range maxIPCSlots {
			paths = append(paths, fmt.Sprintf("%s/discord-ipc-%d", dir, i))
		}
	}
	return paths
}
