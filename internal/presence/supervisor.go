package presence

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"tools.zach/dev/playcord/internal/discord"
	"tools.zach/dev/playcord/internal/logger"
	"tools.zach/dev/playcord/internal/metadata"
)

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

const (
	// DefaultPushInterval is the pause between presence pushes while connected.
	DefaultPushInterval = 2 * time.Second
	// DefaultReconnectInterval is the fixed pause between connection attempts.
	DefaultReconnectInterval = 2 * time.Second
)

// Session is the part of [discord.Session] the supervisor drives.
type Session interface {
	Open(clientID uint64) error
	SetPresence(p discord.Presence) error
	Close() error
	State() discord.State
}

// Config holds the supervisor's fixed parameters.
type Config struct {
	ClientID uint64
	// Enabled is the initial enablement. Start does nothing while false.
	Enabled  bool
	Settings Settings

	// PushInterval and ReconnectInterval default to 2s when zero.
	PushInterval      time.Duration
	ReconnectInterval time.Duration
	// NewBackOff builds the reconnect delay policy for each worker run.
	// Defaults to a constant ReconnectInterval with no retry cap.
	NewBackOff func() backoff.BackOff
	// Now supplies the connect-time start stamp. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.PushInterval <= 0 {
		c.PushInterval = DefaultPushInterval
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.NewBackOff == nil {
		interval := c.ReconnectInterval
		c.NewBackOff = func() backoff.BackOff {
			return backoff.NewConstantBackOff(interval)
		}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// ///////////////////////////////////////////////
// Supervisor
// ///////////////////////////////////////////////

// Supervisor keeps one session alive while presence is enabled. Its worker
// alternates between a connect phase, retrying Open after a fixed delay,
// and a push phase, sending the latest presence every PushInterval until a
// push fails.
//
// All methods are safe for concurrent use.
type Supervisor struct {
	session Session
	cfg     Config

	// lifecycle serializes Start, Stop and SetEnabled.
	lifecycle sync.Mutex
	enabled   bool
	stop      chan struct{}
	wg        sync.WaitGroup

	// mu guards presence and running.
	mu       sync.Mutex
	presence discord.Presence
	running  bool
}

// NewSupervisor returns a stopped supervisor publishing the idle presence.
func NewSupervisor(session Session, cfg Config) *Supervisor {
	cfg = cfg.withDefaults()
	return &Supervisor{
		session:  session,
		cfg:      cfg,
		enabled:  cfg.Enabled,
		presence: Idle(),
	}
}

// Start launches the worker. It is a no-op when already running, and when
// presence is disabled it returns nil without launching anything; a later
// SetEnabled(true) performs the full start.
func (s *Supervisor) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.startLocked()
}

// Stop signals the worker, waits for it to exit, then closes the session,
// which clears the activity shown in Discord. Stopping a stopped supervisor
// is a no-op. The wait is bounded by one transport timeout.
func (s *Supervisor) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.stopLocked()
}

// SetEnabled records the enablement and starts or stops the worker to match.
func (s *Supervisor) SetEnabled(enabled bool) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.enabled = enabled
	if enabled {
		return s.startLocked()
	}
	return s.stopLocked()
}

// Enabled reports the current enablement.
func (s *Supervisor) Enabled() bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.enabled
}

// Running reports whether the worker is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// State returns the session's connection state.
func (s *Supervisor) State() discord.State {
	return s.session.State()
}

// Update rebuilds the presence from m and publishes it for the next push.
func (s *Supervisor) Update(m metadata.Snapshot) {
	s.Publish(Build(m, s.cfg.Settings))
}

// UpdateIdle publishes the idle presence.
func (s *Supervisor) UpdateIdle() {
	s.Publish(Idle())
}

// Publish swaps in p as the presence sent on the next push.
func (s *Supervisor) Publish(p discord.Presence) {
	s.mu.Lock()
	s.presence = p
	s.mu.Unlock()
}

// Snapshot returns the presence that will be sent on the next push.
func (s *Supervisor) Snapshot() discord.Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence
}

// startLocked launches the worker. The caller must hold s.lifecycle.
func (s *Supervisor) startLocked() error {
	if !s.enabled || s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(s.stop)
	slog.Debug("presence supervisor started", "client_id", s.cfg.ClientID)
	return nil
}

// stopLocked joins the worker and closes the session. The caller must hold
// s.lifecycle.
func (s *Supervisor) stopLocked() error {
	if s.stop == nil {
		return nil
	}

	close(s.stop)
	s.wg.Wait()
	s.stop = nil

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	err := s.session.Close()
	slog.Debug("presence supervisor stopped")
	return err
}

// ///////////////////////////////////////////////
// Worker
// ///////////////////////////////////////////////

func (s *Supervisor) run(stop <-chan struct{}) {
	defer s.wg.Done()

	bo := s.cfg.NewBackOff()
	for {
		if !s.connect(stop, bo) {
			return
		}
		if !s.push(stop) {
			return
		}
		slog.Info("discord connection lost, reconnecting")
	}
}

// connect retries Open until it succeeds or stop closes, and reports which
// happened.
func (s *Supervisor) connect(stop <-chan struct{}, bo backoff.BackOff) bool {
	attempts := 0
	for {
		select {
		case <-stop:
			return false
		default:
		}

		err := s.session.Open(s.cfg.ClientID)
		if err == nil {
			break
		}
		attempts++
		if errors.Is(err, discord.ErrConnectFailed) {
			// Discord not running is the normal case; keep this quiet.
			logger.Trace(slog.Default(), "discord not reachable", "attempt", attempts)
		} else {
			slog.Warn("discord connect failed", "attempt", attempts, "error", err)
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			delay = s.cfg.ReconnectInterval
		}
		if !sleep(stop, delay) {
			return false
		}
	}

	bo.Reset()
	s.stampStart()
	slog.Info("connected to discord", "attempts", attempts+1)
	return true
}

// push sends the current presence every PushInterval. It returns false when
// stop closes and true after any failed push; the next Open releases
// whatever transport the session still holds.
func (s *Supervisor) push(stop <-chan struct{}) bool {
	for {
		select {
		case <-stop:
			return false
		default:
		}

		if err := s.session.SetPresence(s.Snapshot()); err != nil {
			slog.Warn("presence push failed, reconnecting", "error", err)
			return true
		}

		if !sleep(stop, s.cfg.PushInterval) {
			return false
		}
	}
}

// stampStart gives a presence without a known end an elapsed-time start of
// now. A playing track's own timestamps replace it on the next Update.
func (s *Supervisor) stampStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presence.End == 0 {
		s.presence.Start = s.cfg.Now().Unix()
	}
}

// sleep waits for d or until stop closes, reporting false on stop.
func sleep(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
