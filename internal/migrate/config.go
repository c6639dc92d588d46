package migrate

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the registry for config.toml.
var Config = &Registry{CurrentVersion: 2}

func init() {
	Config.Register(Migration{
		Version:     2,
		Description: "presence.hide_artist/hide_album -> show_artist/show_album",
		Upgrade:     invertHideFlags,
	})
}

// hideToShow maps each v1 [presence] key to its v2 replacement.
var hideToShow = map[string]string{
	"hide_artist": "show_artist",
	"hide_album":  "show_album",
}

// invertHideFlags rewrites the v1 negative display flags as v2 positive ones.
// A missing v1 key leaves the v2 default in effect.
func invertHideFlags(data []byte) ([]byte, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing v1 config: %w", err)
	}

	if presence, ok := doc["presence"].(map[string]any); ok {
		for oldKey, newKey := range hideToShow {
			v, present := presence[oldKey]
			if !present {
				continue
			}
			hide, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("presence.%s: expected boolean, got %T", oldKey, v)
			}
			delete(presence, oldKey)
			presence[newKey] = !hide
		}
	}
	doc["version"] = int64(2)

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding v2 config: %w", err)
	}
	return buf.Bytes(), nil
}
