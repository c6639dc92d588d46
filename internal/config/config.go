// Package config loads the playcord configuration.
//
// Configuration lives in config.toml in the data directory. Missing keys
// take their defaults, older schema versions are migrated in place (with a
// .bak copy), and the result is validated before use.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"tools.zach/dev/playcord/internal/atomicfile"
	"tools.zach/dev/playcord/internal/migrate"
	"tools.zach/dev/playcord/internal/paths"
)

// DefaultClientID is the playcord Discord application. It is used whenever
// the configured client id is missing or malformed.
const DefaultClientID uint64 = 1041018234058571847

// AutoHost makes the daemon locate MPD via mDNS instead of dialing a fixed
// host.
const AutoHost = "auto"

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config is the top-level configuration.
type Config struct {
	// Version is the schema version used for migrations.
	Version  int            `toml:"version"`
	Discord  DiscordConfig  `toml:"discord"`
	Presence PresenceConfig `toml:"presence"`
	MPD      MPDConfig      `toml:"mpd"`
	Privacy  PrivacyConfig  `toml:"privacy"`
	Log      LogConfig      `toml:"log"`
	Update   UpdateConfig   `toml:"update"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	// ClientID is the Discord application id as a decimal string. TOML
	// integers are signed 64-bit, too small for every valid id.
	ClientID string `toml:"client_id"`
}

// PresenceConfig controls what is published and how often.
type PresenceConfig struct {
	// Enabled toggles publishing. It is the only key applied on hot reload.
	Enabled bool `toml:"enabled"`
	// ShowArtist and ShowAlbum control the second presence line.
	ShowArtist bool `toml:"show_artist"`
	ShowAlbum  bool `toml:"show_album"`
	// PushIntervalSeconds is the pause between presence pushes.
	PushIntervalSeconds int `toml:"push_interval_seconds"`
	// ReconnectIntervalSeconds is the pause between Discord connection attempts.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
	// PollIntervalSeconds is how often MPD is polled besides its idle events.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// MPDConfig locates the MPD server.
type MPDConfig struct {
	// Host is a hostname, an IP, or "auto" for mDNS discovery.
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password,omitempty"`
	// DiscoveryTimeoutSeconds bounds the mDNS browse when Host is "auto".
	DiscoveryTimeoutSeconds int `toml:"discovery_timeout_seconds"`
}

// PrivacyConfig suppresses presence for matching tracks.
type PrivacyConfig struct {
	// Ignore holds doublestar glob patterns matched against the MPD file URI.
	// A matching track is shown as Idling.
	Ignore []string `toml:"ignore"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the log size in megabytes that triggers rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// UpdateConfig controls the startup release check.
type UpdateConfig struct {
	Check bool `toml:"check"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Discord: DiscordConfig{
			ClientID: strconv.FormatUint(DefaultClientID, 10),
		},
		Presence: PresenceConfig{
			Enabled:                  true,
			ShowArtist:               true,
			ShowAlbum:                true,
			PushIntervalSeconds:      2,
			ReconnectIntervalSeconds: 2,
			PollIntervalSeconds:      1,
		},
		MPD: MPDConfig{
			Host:                    "localhost",
			Port:                    6600,
			DiscoveryTimeoutSeconds: 3,
		},
		Privacy: PrivacyConfig{
			Ignore: []string{},
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
		Update: UpdateConfig{
			Check: true,
		},
	}
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// PeekVersion reads only the version key. A missing, zero or unparsable
// version is reported as 1, the unversioned layout.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil || v.Version == 0 {
		return 1
	}
	return v.Version
}

// Load reads dataDir/config.toml. A missing file yields DefaultConfig.
func Load(dataDir string) (*Config, error) {
	dirs := paths.DataDir{Root: dataDir}
	path := dirs.Config()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)
	migrated := migrate.Config.NeedsMigration(version)
	if migrated {
		if err := os.WriteFile(dirs.ConfigBackup(), data, 0o644); err != nil {
			slog.Warn("failed to write config backup", "error", err)
		}
		if data, _, err = migrate.Config.Run(data, version); err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if migrated {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}
	return cfg, nil
}

// Parse decodes and validates a current-version document over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("unknown config key", "key", key.String())
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config as TOML, atomically.
func (c *Config) Save(path string) error {
	return atomicfile.WriteFunc(path, 0o644, func(w io.Writer) error {
		return toml.NewEncoder(w).Encode(c)
	})
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fail": true,
}

// Validate checks that every value is usable. A malformed client id is not
// an error; [Config.ClientID] substitutes the default for it.
func (c *Config) Validate() error {
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, error, or fail", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	intervals := []struct {
		key string
		v   int
	}{
		{"presence.push_interval_seconds", c.Presence.PushIntervalSeconds},
		{"presence.reconnect_interval_seconds", c.Presence.ReconnectIntervalSeconds},
		{"presence.poll_interval_seconds", c.Presence.PollIntervalSeconds},
		{"mpd.discovery_timeout_seconds", c.MPD.DiscoveryTimeoutSeconds},
	}
	for _, iv := range intervals {
		if iv.v <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", iv.key, iv.v)
		}
	}

	if strings.TrimSpace(c.MPD.Host) == "" {
		return fmt.Errorf("mpd.host must not be empty")
	}
	if c.MPD.Port <= 0 || c.MPD.Port > 65535 {
		return fmt.Errorf("mpd.port must be 1-65535, got %d", c.MPD.Port)
	}

	for _, pattern := range c.Privacy.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid privacy.ignore pattern %q", pattern)
		}
	}
	return nil
}

// ///////////////////////////////////////////////
// Accessors
// ///////////////////////////////////////////////

// ParseClientID accepts a Discord application id of 17 to 20 decimal digits
// that fits in a uint64.
func ParseClientID(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 17 || len(s) > 20 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ClientID returns the configured application id, or DefaultClientID with a
// warning when it is malformed.
func (c *Config) ClientID() uint64 {
	if id, ok := ParseClientID(c.Discord.ClientID); ok {
		return id
	}
	slog.Warn("invalid discord.client_id, using default",
		"client_id", c.Discord.ClientID, "default", DefaultClientID)
	return DefaultClientID
}

// MPDAddr returns the "host:port" to dial. It is meaningless when
// [Config.AutoDiscover] is true.
func (c *Config) MPDAddr() string {
	return net.JoinHostPort(c.MPD.Host, strconv.Itoa(c.MPD.Port))
}

// AutoDiscover reports whether MPD should be located via mDNS.
func (c *Config) AutoDiscover() bool {
	return strings.EqualFold(c.MPD.Host, AutoHost)
}

// PushInterval returns presence.push_interval_seconds as a duration.
func (c *Config) PushInterval() time.Duration {
	return time.Duration(c.Presence.PushIntervalSeconds) * time.Second
}

// ReconnectInterval returns presence.reconnect_interval_seconds as a duration.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Presence.ReconnectIntervalSeconds) * time.Second
}

// PollInterval returns presence.poll_interval_seconds as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Presence.PollIntervalSeconds) * time.Second
}

// DiscoveryTimeout returns mpd.discovery_timeout_seconds as a duration.
func (c *Config) DiscoveryTimeout() time.Duration {
	return time.Duration(c.MPD.DiscoveryTimeoutSeconds) * time.Second
}

// ///////////////////////////////////////////////
// Privacy Helpers
// ///////////////////////////////////////////////

// IsIgnored reports whether uri matches any privacy.ignore pattern.
func (c *Config) IsIgnored(uri string) bool {
	if uri == "" {
		return false
	}
	for _, pattern := range c.Privacy.Ignore {
		matched, err := doublestar.Match(pattern, uri)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
