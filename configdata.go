// Package playcord provides embedded assets for the playcord daemon.
//
// The root package only embeds [config.default.toml] via [DefaultConfigTOML].
// The daemon writes it to the data directory on first run so users start
// from a commented file.
package playcord

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
