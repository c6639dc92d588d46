package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// errLocked means another process holds the PID file lock.
var errLocked = errors.New("locked by another process")

// errReplaced means the locked PID file was unlinked before the lock was won.
var errReplaced = errors.New("file replaced while locking")

// pidFile is the held single-instance lock. The file stays open for the
// lifetime of the daemon; the OS drops the lock if the process dies.
type pidFile struct {
	path  string
	token string
	f     *os.File
}

// AlreadyRunningError reports the PID recorded by the instance holding the lock.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	if e.PID == 0 {
		return "playcord is already running"
	}
	return fmt.Sprintf("playcord is already running (pid %d)", e.PID)
}

// lockAttempts bounds how often acquirePID retries after locking a file a
// stopping instance had already removed.
const lockAttempts = 5

// acquirePID locks path and records "PID:TOKEN" in it. The token lets release
// tell whether the file on disk is still ours.
func acquirePID(path string) (*pidFile, error) {
	for range lockAttempts {
		f, err := lockFile(path)
		if errors.Is(err, errReplaced) {
			continue
		}
		if err != nil {
			return nil, err
		}

		p := &pidFile{path: path, token: newToken(), f: f}
		if err := p.write(); err != nil {
			_ = unlock(f)
			f.Close()
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("lock PID file %s: %w", path, errReplaced)
}

// lockFile opens and locks path.
func lockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockOpened(path, f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// lockOpened locks f, which was opened from path. It reports errReplaced when
// the lock was won on an inode that is no longer at path: the previous
// instance removed the file between our open and our lock.
func lockOpened(path string, f *os.File) error {
	if err := tryLock(f); err != nil {
		if errors.Is(err, errLocked) {
			data, _ := os.ReadFile(path)
			return &AlreadyRunningError{PID: parsePID(data)}
		}
		return fmt.Errorf("lock PID file: %w", err)
	}

	held, err := f.Stat()
	if err != nil {
		_ = unlock(f)
		return fmt.Errorf("stat PID file: %w", err)
	}
	onDisk, err := os.Stat(path)
	if err != nil || !os.SameFile(held, onDisk) {
		_ = unlock(f)
		return errReplaced
	}
	return nil
}

func (p *pidFile) write() error {
	if err := p.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err := p.f.WriteAt([]byte(fmt.Sprintf("%d:%s", os.Getpid(), p.token)), 0); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return p.f.Sync()
}

// release removes the file if it still carries this instance's token, then
// unlocks and closes it. The removal happens under the lock so a starting
// instance cannot claim the file in between.
func (p *pidFile) release() {
	owned := p.ownsFile()
	removed := owned && os.Remove(p.path) == nil

	_ = unlock(p.f)
	p.f.Close()

	if owned && !removed {
		// Windows refuses to delete an open file. Check the token again,
		// since another instance may have taken over once unlocked.
		if data, err := os.ReadFile(p.path); err == nil && tokenOf(data) == p.token {
			os.Remove(p.path)
		}
	}
}

// ownsFile reports whether the file still holds this instance's token. It
// reads through the locked handle; Windows rejects reads from others.
func (p *pidFile) ownsFile() bool {
	buf := make([]byte, 64)
	n, _ := p.f.ReadAt(buf, 0)
	return tokenOf(buf[:n]) == p.token
}

func tokenOf(data []byte) string {
	_, token, _ := strings.Cut(strings.TrimSpace(string(data)), ":")
	return token
}

func parsePID(data []byte) int {
	s, _, _ := strings.Cut(strings.TrimSpace(string(data)), ":")
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return pid
}

func newToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
