package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	playcord "tools.zach/dev/playcord"
	"tools.zach/dev/playcord/internal/config"
	"tools.zach/dev/playcord/internal/discovery"
	"tools.zach/dev/playcord/internal/logger"
	"tools.zach/dev/playcord/internal/metadata"
	"tools.zach/dev/playcord/internal/paths"
	"tools.zach/dev/playcord/internal/presence"
	"tools.zach/dev/playcord/internal/watch"
)

// watchRetryInterval spaces out attempts to reopen the MPD idle watcher
// while MPD is down. Polling covers the gap.
const watchRetryInterval = 30 * time.Second

// mediaSource is the MPD side of the daemon.
type mediaSource interface {
	metadata.Source
	Watch(ctx context.Context) (<-chan struct{}, error)
	Close() error
}

// ///////////////////////////////////////////////
// Daemon
// ///////////////////////////////////////////////

// daemon feeds MPD state into the presence supervisor and applies config
// reloads. All fields are owned by the run goroutine.
type daemon struct {
	dirs   paths.DataDir
	cfg    *config.Config
	source mediaSource
	sup    *presence.Supervisor

	// level is the live log threshold; pinLevel means --log-level set it
	// and reloads must not touch it.
	level    *slog.LevelVar
	pinLevel bool

	// idle is true while the idle presence is published. The supervisor
	// starts out idle.
	idle       bool
	lastURI    string
	watchRetry time.Time
}

func newDaemon(dirs paths.DataDir, cfg *config.Config, source mediaSource, session presence.Session, level *slog.LevelVar) *daemon {
	return &daemon{
		dirs:   dirs,
		cfg:    cfg,
		source: source,
		sup:    presence.NewSupervisor(session, supervisorConfig(cfg)),
		level:  level,
		idle:   true,
	}
}

// supervisorConfig maps the loaded settings onto the supervisor.
func supervisorConfig(cfg *config.Config) presence.Config {
	return presence.Config{
		ClientID: cfg.ClientID(),
		Enabled:  cfg.Presence.Enabled,
		Settings: presence.Settings{
			ShowArtist: cfg.Presence.ShowArtist,
			ShowAlbum:  cfg.Presence.ShowAlbum,
		},
		PushInterval:      cfg.PushInterval(),
		ReconnectInterval: cfg.ReconnectInterval(),
	}
}

// run blocks until ctx is cancelled. On return the supervisor has been
// stopped, which clears the activity in Discord.
func (d *daemon) run(ctx context.Context) error {
	defer d.source.Close()

	if err := d.sup.Start(); err != nil {
		return err
	}
	defer func() {
		if err := d.sup.Stop(); err != nil {
			slog.Debug("presence stop", "error", err)
		}
	}()

	var reloads <-chan struct{}
	if w, err := watch.New(d.dirs.Config()); err != nil {
		slog.Warn("config hot reload disabled", "error", err)
	} else {
		defer w.Close()
		reloads = w.Changes()
	}

	players := d.watchPlayer(ctx)
	poll := time.NewTicker(d.cfg.PollInterval())
	defer poll.Stop()

	d.refresh()
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown requested")
			return nil

		case _, ok := <-players:
			if !ok {
				players = nil
				d.watchRetry = time.Now().Add(watchRetryInterval)
				continue
			}
			d.refresh()

		case <-poll.C:
			d.refresh()
			if players == nil && time.Now().After(d.watchRetry) {
				players = d.watchPlayer(ctx)
			}

		case <-reloads:
			d.reload()
		}
	}
}

// watchPlayer opens MPD's idle watcher, returning nil while MPD is not
// reachable.
func (d *daemon) watchPlayer(ctx context.Context) <-chan struct{} {
	ch, err := d.source.Watch(ctx)
	if err != nil {
		d.watchRetry = time.Now().Add(watchRetryInterval)
		slog.Debug("mpd idle watcher unavailable, polling only", "error", err)
		return nil
	}
	return ch
}

// refresh reads MPD once and publishes the matching presence.
func (d *daemon) refresh() {
	snap, err := d.source.Current()
	switch {
	case errors.Is(err, metadata.ErrNoActiveMedia):
		d.showIdle()
	case err != nil:
		logger.Trace(slog.Default(), "mpd unavailable", "error", err)
		d.showIdle()
	case d.cfg.IsIgnored(snap.URI):
		if snap.URI != d.lastURI {
			slog.Debug("track matches privacy.ignore", "uri", snap.URI)
			d.lastURI = snap.URI
		}
		d.showIdle()
	default:
		if snap.URI != d.lastURI {
			slog.Debug("now playing", "title", snap.Title, "artist", snap.Artist, "paused", snap.IsPaused)
			d.lastURI = snap.URI
		}
		d.idle = false
		d.sup.Update(snap)
	}
}

// showIdle publishes the idle presence once per idle stretch, so the start
// stamp the supervisor adds on connect survives later polls.
func (d *daemon) showIdle() {
	if d.idle {
		return
	}
	d.idle = true
	d.lastURI = ""
	d.sup.UpdateIdle()
}

// reload re-reads config.toml. Only presence.enabled and, unless pinned by
// flag, log.level take effect; everything else needs a restart.
func (d *daemon) reload() {
	cfg, err := config.Load(d.dirs.Root)
	if err != nil {
		slog.Warn("config reload failed, keeping current settings", "error", err)
		return
	}

	if d.level != nil && !d.pinLevel {
		d.level.Set(logger.ParseLevel(cfg.Log.Level))
	}

	if cfg.Presence.Enabled == d.cfg.Presence.Enabled {
		return
	}
	d.cfg.Presence.Enabled = cfg.Presence.Enabled
	slog.Info("presence toggled", "enabled", cfg.Presence.Enabled)
	if err := d.sup.SetEnabled(cfg.Presence.Enabled); err != nil {
		slog.Warn("applying presence toggle", "error", err)
	}
}

// ///////////////////////////////////////////////
// Setup Helpers
// ///////////////////////////////////////////////

// writeDefaultConfig seeds a commented config.toml on first run.
func writeDefaultConfig(dirs paths.DataDir) error {
	if _, err := os.Stat(dirs.Config()); !os.IsNotExist(err) {
		return nil
	}
	return os.WriteFile(dirs.Config(), playcord.DefaultConfigTOML, 0o644)
}

// resolveMPDAddr returns the configured MPD address, browsing mDNS when the
// host is "auto". A failed browse falls back to localhost.
func resolveMPDAddr(ctx context.Context, cfg *config.Config) string {
	if !cfg.AutoDiscover() {
		return cfg.MPDAddr()
	}

	b := discovery.NewBrowser()
	b.Timeout = cfg.DiscoveryTimeout()
	srv, err := b.FindFirst(ctx)
	if err != nil {
		fallback := net.JoinHostPort("localhost", strconv.Itoa(cfg.MPD.Port))
		slog.Warn("mpd discovery failed, using fallback", "addr", fallback, "error", err)
		return fallback
	}
	slog.Info("discovered mpd", "instance", srv.Instance, "host", srv.Host, "addr", srv.Addr())
	return srv.Addr()
}
