// Package discord speaks Discord's local IPC protocol, enough to publish a
// Rich Presence activity via the SET_ACTIVITY command.
//
// A [Session] owns one [Transport] and moves through the states Idle,
// Handshaking and Ready. Platform-specific endpoint discovery is handled by
// conn_unix.go and conn_windows.go.
package discord

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

var (
	// ErrHandshakeRejected is returned by Open when Discord answered the
	// handshake with anything other than a READY dispatch.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrCommandRejected is returned by SetPresence when Discord answered with
	// an error payload. The transport is kept, but callers treat it as a
	// connection-level failure and reopen.
	ErrCommandRejected = errors.New("command rejected")
	// ErrNotConnected is returned when an operation requires a Ready session.
	ErrNotConnected = errors.New("not connected")
	// ErrTransport wraps any I/O failure during an exchange. The specific cause
	// (ErrPeerClosed, ErrReadTimeout, ...) remains visible to errors.Is.
	ErrTransport = errors.New("transport error")
)

// ///////////////////////////////////////////////
// State
// ///////////////////////////////////////////////

// State is the lifecycle position of a Session.
type State int32

const (
	// StateIdle means no transport is held.
	StateIdle State = iota
	// StateHandshaking means a transport is connected but the handshake has
	// not been accepted yet.
	StateHandshaking
	// StateReady is the only state in which presence updates are sent.
	StateReady
)

// String returns the state name used in log output.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ///////////////////////////////////////////////
// Options
// ///////////////////////////////////////////////

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the platform endpoint discovery. Tests use it to hand
// the session an in-memory transport.
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dial = d }
}

// WithTimeouts overrides the write, read and per-candidate dial timeouts.
// Zero values keep the defaults.
func WithTimeouts(write, read, dial time.Duration) Option {
	return func(s *Session) {
		if write > 0 {
			s.writeTimeout = write
		}
		if read > 0 {
			s.readTimeout = read
		}
		if dial > 0 {
			s.dialTimeout = dial
		}
	}
}

// WithDiagnostic installs a sink for the human-readable messages Discord
// includes in rejected responses. The sink must not block.
func WithDiagnostic(fn func(msg string)) Option {
	return func(s *Session) { s.diag = fn }
}

// WithPID sets the process id reported in SET_ACTIVITY. Defaults to os.Getpid.
func WithPID(pid int) Option {
	return func(s *Session) { s.pid = pid }
}

// ///////////////////////////////////////////////
// Session
// ///////////////////////////////////////////////

// Session is one logical connection to Discord. All methods are safe for
// concurrent use; exchanges are serialized, so at most one request is in
// flight at a time.
type Session struct {
	// dial finds and connects to a Discord endpoint.
	dial Dialer
	// writeTimeout bounds sending one frame.
	writeTimeout time.Duration
	// readTimeout bounds each read while waiting for a reply.
	readTimeout time.Duration
	// dialTimeout is the per-candidate connect timeout.
	dialTimeout time.Duration
	// diag receives Discord's error messages; nil drops them.
	diag func(string)
	// pid is reported in every SET_ACTIVITY.
	pid int

	// mu guards transport and state and is held for the whole of an
	// exchange. Every exchange is bounded by the transport timeouts.
	mu sync.Mutex
	// transport is the open connection, nil while Idle.
	transport Transport
	// state is the lifecycle position; only StateReady sends activities.
	state State
}

// NewSession returns an Idle session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		dial:         Connect,
		writeTimeout: DefaultWriteTimeout,
		readTimeout:  DefaultReadTimeout,
		dialTimeout:  DefaultDialTimeout,
		pid:          os.Getpid(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open connects to Discord and performs the handshake for clientID. Any
// previously held transport is released first. On failure the session is
// left Idle and the error wraps ErrConnectFailed, ErrHandshakeRejected or
// ErrTransport.
func (s *Session) Open(clientID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.discardLocked()

	t, err := s.dial(s.dialTimeout)
	if err != nil {
		if !errors.Is(err, ErrConnectFailed) {
			err = fmt.Errorf("%w: %w", ErrConnectFailed, err)
		}
		return err
	}
	s.transport = t
	s.state = StateHandshaking

	payload, err := handshakePayload(clientID)
	if err != nil {
		s.discardLocked()
		return fmt.Errorf("marshaling handshake: %w", err)
	}

	frame, err := EncodeFrame(OpHandshake, payload)
	if err != nil {
		s.discardLocked()
		return fmt.Errorf("encoding handshake: %w", err)
	}

	op, resp, err := s.exchangeLocked(frame)
	if err != nil {
		s.discardLocked()
		return fmt.Errorf("handshake: %w: %w", ErrTransport, err)
	}

	accepted, msg := Classify(resp)
	if !accepted || op == OpClose {
		s.report(msg)
		s.discardLocked()
		if msg == "" {
			return ErrHandshakeRejected
		}
		return fmt.Errorf("%w: %s", ErrHandshakeRejected, msg)
	}

	s.state = StateReady
	slog.Debug("discord handshake accepted", "client_id", clientID)
	return nil
}

// SetPresence publishes p and waits for Discord's reply.
//
// Any transport failure, timeouts included, or a CLOSE frame from Discord
// releases the transport and returns the session to Idle; a new Open is
// required before further pushes. A reply arriving after a timeout would
// otherwise be read as the answer to the next command. In every transport
// case the returned error wraps ErrTransport.
func (s *Session) SetPresence(p Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendActivityLocked(&p)
}

// ClearPresence removes the displayed activity without closing the session.
func (s *Session) ClearPresence() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendActivityLocked(nil)
}

// Close sends a best-effort clear-activity command when Ready, then releases
// the transport. It is safe to call in any state.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport == nil {
		s.state = StateIdle
		return nil
	}
	if s.state == StateReady {
		_ = s.sendActivityLocked(nil)
	}
	if s.transport == nil {
		return nil
	}
	err := s.transport.Close()
	s.transport = nil
	s.state = StateIdle
	return err
}

// sendActivityLocked runs one SET_ACTIVITY exchange. The caller must hold s.mu.
func (s *Session) sendActivityLocked(p *Presence) error {
	if s.state != StateReady || s.transport == nil {
		return ErrNotConnected
	}

	payload, err := setActivityPayload(s.pid, p)
	if err != nil {
		return err
	}

	// An oversized command fails here, before anything is written.
	frame, err := EncodeFrame(OpFrame, payload)
	if err != nil {
		return err
	}

	op, resp, err := s.exchangeLocked(frame)
	if err != nil {
		s.discardLocked()
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	accepted, msg := Classify(resp)
	if op == OpClose {
		s.report(msg)
		s.discardLocked()
		return fmt.Errorf("%w: %w: %s", ErrTransport, ErrPeerClosed, msg)
	}
	if !accepted {
		s.report(msg)
		return fmt.Errorf("%w: %s", ErrCommandRejected, msg)
	}
	return nil
}

// exchangeLocked writes one encoded frame and reads the reply. PING frames
// received while waiting are answered with PONG and skipped. The caller must
// hold s.mu.
//
// An oversized reply cannot be skipped without reading it, so the stream is
// out of sync afterwards and the error is not a timeout.
func (s *Session) exchangeLocked(frame []byte) (Opcode, []byte, error) {
	if err := s.transport.WriteAll(frame, s.writeTimeout); err != nil {
		return 0, nil, err
	}

	for {
		raw, err := s.transport.ReadExact(HeaderSize, s.readTimeout)
		if err != nil {
			return 0, nil, err
		}
		var header [HeaderSize]byte
		copy(header[:], raw)

		respOp, length, err := DecodeHeader(header)
		if err != nil {
			return 0, nil, fmt.Errorf("reading reply: %w", err)
		}

		var body []byte
		if length > 0 {
			body, err = s.transport.ReadExact(int(length), s.readTimeout)
			if err != nil {
				return 0, nil, err
			}
		}

		if respOp == OpPing {
			pong, err := EncodeFrame(OpPong, body)
			if err != nil {
				return 0, nil, err
			}
			if err := s.transport.WriteAll(pong, s.writeTimeout); err != nil {
				return 0, nil, err
			}
			continue
		}
		return respOp, body, nil
	}
}

// discardLocked closes and forgets the transport. The caller must hold s.mu.
func (s *Session) discardLocked() {
	if s.transport != nil {
		_ = s.transport.Close()
		s.transport = nil
	}
	s.state = StateIdle
}

// report forwards a non-empty diagnostic message to the sink.
func (s *Session) report(msg string) {
	if msg != "" && s.diag != nil {
		s.diag(msg)
	}
}
