package discord

import (
	"bytes"
	"strings"
)

// acceptMarkers are the substrings whose presence marks a response as a
// success: a READY dispatch after the handshake, the echoed SET_ACTIVITY
// command, or an explicit zero result code.
var acceptMarkers = [][]byte{
	[]byte(`"evt":"READY"`),
	[]byte(`"cmd":"SET_ACTIVITY"`),
	[]byte(`"code":0`),
}

var messageKey = []byte(`"message":"`)

// Classify decides whether a response payload signals success. Rejected
// payloads also yield the text of their "message" field, if any.
//
// The check is a substring scan rather than a JSON decode, so a nested field
// with one of the marker names is indistinguishable from a top-level one.
// Discord's reply vocabulary is small and fixed, which keeps this reliable in
// practice. An empty payload is accepted.
func Classify(payload []byte) (accepted bool, message string) {
	if len(payload) == 0 {
		return true, ""
	}
	for _, m := range acceptMarkers {
		if bytes.Contains(payload, m) {
			return true, ""
		}
	}
	return false, extractMessage(payload)
}

// extractMessage returns the string value following the first "message" key,
// honouring backslash escapes up to the closing quote.
func extractMessage(payload []byte) string {
	i := bytes.Index(payload, messageKey)
	if i < 0 {
		return ""
	}
	rest := payload[i+len(messageKey):]

	var sb strings.Builder
	for j := 0; j < len(rest); j++ {
		c := rest[j]
		switch {
		case c == '"':
			return sb.String()
		case c == '\\' && j+1 < len(rest):
			j++
			switch rest[j] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(rest[j])
			}
		default:
			sb.WriteByte(c)
		}
	}
	// Unterminated string: return what was collected.
	return sb.String()
}
