package discord

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// ///////////////////////////////////////////////
// Timeouts
// ///////////////////////////////////////////////

const (
	// DefaultWriteTimeout bounds each write cycle of an exchange.
	DefaultWriteTimeout = 2000 * time.Millisecond
	// DefaultReadTimeout bounds each read cycle of an exchange.
	DefaultReadTimeout = 3000 * time.Millisecond
	// DefaultDialTimeout is how long a single IPC endpoint candidate may take
	// to accept a connection before the next one is tried.
	DefaultDialTimeout = 100 * time.Millisecond
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

var (
	// ErrConnectFailed is returned when no IPC endpoint candidate accepted a
	// connection. It is the expected result while Discord is not running.
	ErrConnectFailed = errors.New("discord IPC not available")
	// ErrWriteTimeout is returned when a write did not complete in time.
	ErrWriteTimeout = errors.New("write timeout")
	// ErrReadTimeout is returned when a read did not complete in time.
	ErrReadTimeout = errors.New("read timeout")
	// ErrPeerClosed is returned when Discord closed or reset the connection.
	// The transport is unusable afterwards.
	ErrPeerClosed = errors.New("peer closed connection")
)

// ///////////////////////////////////////////////
// Transport
// ///////////////////////////////////////////////

// Transport is a connected, bidirectional byte stream to Discord's IPC
// endpoint. Every call is bounded by its timeout.
type Transport interface {
	// WriteAll writes all of p or fails with ErrWriteTimeout or ErrPeerClosed.
	// A partial write is never reported as success.
	WriteAll(p []byte, timeout time.Duration) error
	// ReadExact reads exactly n bytes or fails with ErrReadTimeout or
	// ErrPeerClosed. The timeout applies to each read cycle, not the total.
	ReadExact(n int, timeout time.Duration) ([]byte, error)
	// Close releases the underlying handle. It is idempotent.
	Close() error
}

// Dialer produces a connected Transport, trying each endpoint candidate for
// at most perAttempt.
type Dialer func(perAttempt time.Duration) (Transport, error)

// Connect probes the platform's Discord IPC endpoints in ascending slot order
// and returns a Transport for the first one that accepts a connection.
func Connect(perAttempt time.Duration) (Transport, error) {
	conn, err := connectToDiscord(perAttempt)
	if err != nil {
		return nil, err
	}
	return NewConnTransport(conn), nil
}

// connTransport implements Transport over a net.Conn using per-cycle deadlines.
type connTransport struct {
	// conn is the socket or named pipe connection.
	conn net.Conn
	// closeOnce makes Close idempotent.
	closeOnce sync.Once
	// closeErr is the result of the first Close.
	closeErr error
}

// NewConnTransport wraps an established connection. Unix sockets and go-winio
// named pipes both support the deadlines the transport relies on.
func NewConnTransport(conn net.Conn) Transport {
	return &connTransport{conn: conn}
}

// WriteAll implements [Transport].
func (t *connTransport) WriteAll(p []byte, timeout time.Duration) error {
	written := 0
	for written < len(p) {
		if err := t.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return classifyIOError(err, ErrWriteTimeout)
		}
		n, err := t.conn.Write(p[written:])
		written += n
		if err != nil {
			if written == len(p) {
				return nil
			}
			return classifyIOError(err, ErrWriteTimeout)
		}
		if n == 0 {
			return fmt.Errorf("%w: zero-byte write", ErrPeerClosed)
		}
	}
	return nil
}

// ReadExact implements [Transport].
func (t *connTransport) ReadExact(n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, classifyIOError(err, ErrReadTimeout)
		}
		m, err := t.conn.Read(buf[got:])
		got += m
		if err != nil {
			// An error reported alongside the final bytes is not a failure.
			if got == n {
				break
			}
			return nil, classifyIOError(err, ErrReadTimeout)
		}
		if m == 0 {
			return nil, fmt.Errorf("%w: zero-byte read", ErrPeerClosed)
		}
	}
	return buf, nil
}

// Close implements [Transport].
func (t *connTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// classifyIOError maps a connection error to the timeout sentinel, to
// ErrPeerClosed for end-of-stream and broken-pipe conditions, or wraps it
// unchanged. Only the timeout sentinel leaves the transport reusable.
func classifyIOError(err error, timeout error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return timeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return timeout
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) ||
		isBrokenPipe(err) {
		return fmt.Errorf("%w: %w", ErrPeerClosed, err)
	}
	return fmt.Errorf("transport I/O: %w", err)
}

// IsTimeout reports whether err is a read or write timeout. The session
// discards its transport after a timeout like after any other I/O failure.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrWriteTimeout) || errors.Is(err, ErrReadTimeout)
}
