// Package presence turns player metadata into Discord Rich Presence and
// keeps it published.
//
// [Build] is the pure mapping from a metadata snapshot to a presence.
// [Supervisor] owns the background worker that keeps a session connected
// and pushes the latest presence at a fixed cadence.
package presence

import (
	"tools.zach/dev/playcord/internal/discord"
	"tools.zach/dev/playcord/internal/metadata"
)

// Asset keys registered with the Discord application, and fixed labels.
const (
	LargeImageKey  = "large_image_default"
	LargeImageText = "Music Player Daemon"
	PlayImageKey   = "play"
	PauseImageKey  = "pause"

	IdleDetails = "Idling"
	PlayingText = "Playing"
	PausedText  = "Paused"
)

// Settings are the user preferences that shape the presence text.
type Settings struct {
	ShowArtist bool
	ShowAlbum  bool
}

// Build maps a metadata snapshot to the presence Discord should show. It
// does no I/O.
//
// A playing track advertises its start and end so Discord renders a
// countdown; a paused one advertises no timestamps because elapsed time is
// frozen.
func Build(m metadata.Snapshot, s Settings) discord.Presence {
	p := discord.Presence{
		LargeImage: LargeImageKey,
		LargeText:  LargeImageText,
	}

	if !m.IsPlaying {
		p.Details = IdleDetails
		return p
	}

	p.Details = discord.Truncate(m.Title)
	p.State = discord.Truncate(stateText(m, s))

	if m.IsPaused {
		p.SmallImage = PauseImageKey
		p.SmallText = PausedText
		return p
	}

	p.SmallImage = PlayImageKey
	p.SmallText = PlayingText
	p.Start = m.Start
	p.End = m.End
	if p.End != 0 && p.End < p.Start {
		p.End = 0
	}
	return p
}

// Idle returns the presence shown when nothing is playing.
func Idle() discord.Presence {
	return Build(metadata.Snapshot{}, Settings{})
}

// stateText joins the enabled, non-empty artist and album fields.
func stateText(m metadata.Snapshot, s Settings) string {
	artist := s.ShowArtist && m.Artist != ""
	album := s.ShowAlbum && m.Album != ""
	switch {
	case artist && album:
		return m.Artist + " - " + m.Album
	case artist:
		return m.Artist
	case album:
		return m.Album
	default:
		return ""
	}
}
