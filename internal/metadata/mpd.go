package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
)

// FallbackTitle is shown when a track has neither a title tag nor a usable
// file name.
const FallbackTitle = "MPD"

// videoExtensions lists the file extensions MPD can decode whose primary
// content is video.
var videoExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mkv": true, ".webm": true, ".avi": true,
	".mov": true, ".wmv": true, ".flv": true, ".mpg": true, ".mpeg": true,
	".ts": true, ".ogv": true,
}

// ///////////////////////////////////////////////
// MPD Source
// ///////////////////////////////////////////////

// MPD is a [Source] backed by a Music Player Daemon connection. The
// connection is dialed lazily and re-dialed after any command failure.
type MPD struct {
	addr     string
	password string
	now      func() time.Time

	mu     sync.Mutex
	client *mpd.Client
}

// NewMPD returns a source for the MPD server at addr ("host:port").
func NewMPD(addr, password string) *MPD {
	return &MPD{addr: addr, password: password, now: time.Now}
}

// Addr returns the server address this source reads from.
func (m *MPD) Addr() string {
	return m.addr
}

// Current implements [Source].
func (m *MPD) Current() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureConnectedLocked(); err != nil {
		return Snapshot{}, err
	}

	status, err := m.client.Status()
	if err != nil {
		m.dropLocked()
		return Snapshot{}, fmt.Errorf("mpd status: %w", err)
	}
	song, err := m.client.CurrentSong()
	if err != nil {
		m.dropLocked()
		return Snapshot{}, fmt.Errorf("mpd currentsong: %w", err)
	}
	return FromAttrs(status, song, m.now())
}

// Close releases the MPD connection.
func (m *MPD) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}

// ensureConnectedLocked dials if needed and pings an existing connection,
// since MPD closes idle clients after its connection_timeout. The caller
// must hold m.mu.
func (m *MPD) ensureConnectedLocked() error {
	if m.client != nil {
		if err := m.client.Ping(); err == nil {
			return nil
		}
		slog.Debug("mpd connection lost, redialing", "addr", m.addr)
		m.dropLocked()
	}

	client, err := mpd.DialAuthenticated("tcp", m.addr, m.password)
	if err != nil {
		return fmt.Errorf("connecting to MPD at %s: %w", m.addr, err)
	}
	m.client = client
	return nil
}

// dropLocked closes and forgets the connection. The caller must hold m.mu.
func (m *MPD) dropLocked() {
	if m.client != nil {
		_ = m.client.Close()
		m.client = nil
	}
}

// ///////////////////////////////////////////////
// Watch
// ///////////////////////////////////////////////

// Watch opens a dedicated idle connection and signals on the returned channel
// whenever MPD reports a change to the player subsystem. Bursts of events
// coalesce into a single pending signal. The channel is closed when ctx is
// cancelled or the watcher fails to reconnect.
func (m *MPD) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := mpd.NewWatcher("tcp", m.addr, m.password, "player")
	if err != nil {
		return nil, fmt.Errorf("creating MPD watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-w.Event:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			case err, ok := <-w.Error:
				if !ok {
					return
				}
				slog.Warn("mpd watcher error", "addr", m.addr, "error", err)
			}
		}
	}()
	return ch, nil
}

// ///////////////////////////////////////////////
// Mapping
// ///////////////////////////////////////////////

// FromAttrs maps the replies to MPD's "status" and "currentsong" commands to
// a Snapshot. A stopped player or an empty current song yields
// ErrNoActiveMedia.
func FromAttrs(status, song mpd.Attrs, now time.Time) (Snapshot, error) {
	state := status["state"]
	if state != "play" && state != "pause" {
		return Snapshot{}, ErrNoActiveMedia
	}
	if len(song) == 0 {
		return Snapshot{}, ErrNoActiveMedia
	}

	uri := song["file"]
	snap := Snapshot{
		Title:     trackTitle(song["Title"], uri),
		Artist:    firstNonEmpty(song["Artist"], song["AlbumArtist"]),
		Album:     song["Album"],
		URI:       uri,
		IsPlaying: true,
		IsPaused:  state == "pause",
		IsVideo:   videoExtensions[strings.ToLower(path.Ext(uri))],
	}

	elapsed, total := position(status, song)
	snap.Start = now.Unix() - int64(math.Round(elapsed))
	if total > 0 {
		snap.End = snap.Start + int64(math.Round(total))
	}
	return snap, nil
}

// position returns the elapsed and total seconds of the current track. MPD
// 0.20+ reports "elapsed" and "duration" separately; older servers only send
// "time" as "elapsed:total" in whole seconds.
func position(status, song mpd.Attrs) (elapsed, total float64) {
	elapsed = parseSeconds(status["elapsed"])
	total = parseSeconds(status["duration"])
	if total == 0 {
		total = parseSeconds(song["duration"])
	}
	if e, t, ok := strings.Cut(status["time"], ":"); ok {
		if elapsed == 0 {
			elapsed = parseSeconds(e)
		}
		if total == 0 {
			total = parseSeconds(t)
		}
	}
	return elapsed, total
}

func parseSeconds(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// trackTitle prefers the Title tag, then the last element of the URI.
func trackTitle(tag, uri string) string {
	if tag = strings.TrimSpace(tag); tag != "" {
		return tag
	}
	if uri != "" {
		if base := path.Base(strings.TrimRight(uri, "/")); base != "." && base != "/" {
			return base
		}
	}
	return FallbackTitle
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
