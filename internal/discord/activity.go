package discord

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"unicode/utf8"
)

// MaxFieldRunes is the longest string Discord accepts for any activity field.
const MaxFieldRunes = 127

// ///////////////////////////////////////////////
// Presence
// ///////////////////////////////////////////////

// Presence is the snapshot of what Discord should display. Empty strings
// and zero timestamps are omitted from the wire payload. Timestamps are Unix
// seconds.
type Presence struct {
	State      string
	Details    string
	LargeImage string
	LargeText  string
	SmallImage string
	SmallText  string
	Start      int64
	End        int64
}

// IsZero reports whether p carries no content at all.
func (p Presence) IsZero() bool {
	return p == Presence{}
}

// ///////////////////////////////////////////////
// Wire Types
// ///////////////////////////////////////////////

type timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

type assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

type activity struct {
	State      string      `json:"state,omitempty"`
	Details    string      `json:"details,omitempty"`
	Timestamps *timestamps `json:"timestamps,omitempty"`
	Assets     *assets     `json:"assets,omitempty"`
}

type activityArgs struct {
	PID      int       `json:"pid"`
	Activity *activity `json:"activity"`
}

type command struct {
	Cmd   string       `json:"cmd"`
	Args  activityArgs `json:"args"`
	Nonce string       `json:"nonce"`
}

type handshake struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

// ///////////////////////////////////////////////
// Payload Builders
// ///////////////////////////////////////////////

// handshakePayload returns the opening handshake JSON for clientID.
func handshakePayload(clientID uint64) ([]byte, error) {
	return json.Marshal(handshake{V: 1, ClientID: strconv.FormatUint(clientID, 10)})
}

// setActivityPayload returns a SET_ACTIVITY command. A nil presence produces
// "activity":null, which clears the displayed status.
func setActivityPayload(pid int, p *Presence) ([]byte, error) {
	cmd := command{
		Cmd:   "SET_ACTIVITY",
		Args:  activityArgs{PID: pid, Activity: toActivity(p)},
		Nonce: newNonce(),
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshaling SET_ACTIVITY: %w", err)
	}
	return data, nil
}

// toActivity converts a Presence into its wire form, truncating every string
// to MaxFieldRunes and dropping an end time that precedes the start time.
func toActivity(p *Presence) *activity {
	if p == nil {
		return nil
	}
	a := &activity{
		State:   Truncate(p.State),
		Details: Truncate(p.Details),
	}

	start, end := p.Start, p.End
	if end != 0 && end < start {
		end = 0
	}
	if start != 0 || end != 0 {
		a.Timestamps = &timestamps{Start: start, End: end}
	}

	as := assets{
		LargeImage: Truncate(p.LargeImage),
		LargeText:  Truncate(p.LargeText),
		SmallImage: Truncate(p.SmallImage),
		SmallText:  Truncate(p.SmallText),
	}
	if as != (assets{}) {
		a.Assets = &as
	}
	return a
}

// Truncate shortens s to at most MaxFieldRunes runes.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxFieldRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == MaxFieldRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// newNonce returns a random six-digit decimal string. Responses are not
// matched against it.
func newNonce() string {
	return strconv.Itoa(100000 + rand.IntN(900000))
}
