// Package metadata reads what the user is currently listening to. The
// [Source] interface is the boundary the presence supervisor depends on; the
// [MPD] type implements it against a Music Player Daemon server.
package metadata

import "errors"

// ErrNoActiveMedia is returned by a Source when the player is stopped or has
// no current track.
var ErrNoActiveMedia = errors.New("no active media")

// Snapshot is a point-in-time view of the player. It is rebuilt on every poll
// and has no identity across polls. Timestamps are Unix seconds; zero means
// unknown.
type Snapshot struct {
	Title  string
	Artist string
	Album  string
	// URI is the player's identifier for the track (a library-relative path
	// or a stream URL). It is matched against privacy ignore patterns and is
	// never displayed.
	URI string

	IsPlaying bool
	IsPaused  bool
	IsVideo   bool

	Start int64
	End   int64
}

// Source produces the current Snapshot. Implementations must return quickly
// enough to be polled about once a second.
type Source interface {
	Current() (Snapshot, error)
}
