// Tests for the config package covering [Load] (defaults, overrides, missing
// files, malformed input, migration), [Config.Validate], client id handling,
// privacy ignore patterns and [Config.Save] round-trips.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// ///////////////////////////////////////////////
// Load
// ///////////////////////////////////////////////

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		noFile  bool
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:   "missing file yields defaults",
			noFile: true,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if !reflect.DeepEqual(cfg, DefaultConfig()) {
					t.Errorf("Load = %+v, want defaults", cfg)
				}
			},
		},
		{
			name:   "defaults from minimal config",
			config: "version = 2\n",
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				def := DefaultConfig()
				if cfg.Presence != def.Presence {
					t.Errorf("Presence = %+v, want %+v", cfg.Presence, def.Presence)
				}
				if cfg.MPD != def.MPD {
					t.Errorf("MPD = %+v, want %+v", cfg.MPD, def.MPD)
				}
			},
		},
		{
			name: "user overrides applied",
			config: `
version = 2

[discord]
client_id = "123456789012345678"

[presence]
enabled = false
show_album = false
push_interval_seconds = 5

[mpd]
host = "auto"
port = 6601
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.ClientID() != 123456789012345678 {
					t.Errorf("ClientID = %d", cfg.ClientID())
				}
				if cfg.Presence.Enabled || cfg.Presence.ShowAlbum || !cfg.Presence.ShowArtist {
					t.Errorf("unexpected presence flags: %+v", cfg.Presence)
				}
				if cfg.PushInterval() != 5*time.Second {
					t.Errorf("PushInterval = %v", cfg.PushInterval())
				}
				if !cfg.AutoDiscover() {
					t.Error("expected auto discovery")
				}
			},
		},
		{
			name:    "malformed TOML",
			config:  "version = 2\n[presence\n",
			wantErr: true,
		},
		{
			name:    "invalid value rejected",
			config:  "version = 2\n[mpd]\nport = 70000\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if !tt.noFile {
				writeConfig(t, dir, tt.config)
			}

			cfg, err := Load(dir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_MigratesV1(t *testing.T) {
	dir := t.TempDir()
	v1 := "[presence]\nhide_artist = true\n"
	path := writeConfig(t, dir, v1)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != 2 {
		t.Fatalf("Version = %d, want 2", cfg.Version)
	}
	if cfg.Presence.ShowArtist {
		t.Fatal("hide_artist = true should become show_artist = false")
	}
	if !cfg.Presence.ShowAlbum {
		t.Fatal("show_album should keep its default")
	}

	backup, err := os.ReadFile(path + ".bak")
	if err != nil || string(backup) != v1 {
		t.Fatalf("backup = %q, %v; want original contents", backup, err)
	}
	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read migrated file: %v", err)
	}
	if PeekVersion(saved) != 2 || strings.Contains(string(saved), "hide_artist") {
		t.Fatalf("migrated file not re-saved:\n%s", saved)
	}
}

func TestPeekVersion(t *testing.T) {
	tests := []struct {
		data string
		want int
	}{
		{"version = 3\n", 3},
		{"[presence]\nenabled = true\n", 1},
		{"version = 0\n", 1},
		{"not toml [", 1},
	}
	for _, tt := range tests {
		if got := PeekVersion([]byte(tt.data)); got != tt.want {
			t.Errorf("PeekVersion(%q) = %d, want %d", tt.data, got, tt.want)
		}
	}
}

// ///////////////////////////////////////////////
// Client ID
// ///////////////////////////////////////////////

func TestParseClientID(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"1041018234058571847", 1041018234058571847, true},
		{"12345678901234567", 12345678901234567, true},
		{" 12345678901234567 ", 12345678901234567, true},
		{"1234567890123456", 0, false},
		{"123456789012345678901", 0, false},
		{"99999999999999999999", 0, false},
		{"10410182340585718x7", 0, false},
		{"-1041018234058571847", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseClientID(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseClientID(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestConfig_ClientIDFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discord.ClientID = "not-an-id"
	if got := cfg.ClientID(); got != DefaultClientID {
		t.Fatalf("ClientID = %d, want default %d", got, DefaultClientID)
	}
}

// ///////////////////////////////////////////////
// Privacy
// ///////////////////////////////////////////////

func TestConfig_IsIgnored(t *testing.T) {
	tests := []struct {
		name   string
		ignore []string
		uri    string
		want   bool
	}{
		{"exact match", []string{"private/diary.ogg"}, "private/diary.ogg", true},
		{"directory glob", []string{"Podcasts/**"}, "Podcasts/show/ep1.mp3", true},
		{"extension glob", []string{"**/*.m4b"}, "books/novel/part1.m4b", true},
		{"no match", []string{"Podcasts/**"}, "Music/a.flac", false},
		{"empty uri", []string{"**"}, "", false},
		{"empty list", nil, "Music/a.flac", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Privacy.Ignore = tt.ignore
			if got := cfg.IsIgnored(tt.uri); got != tt.want {
				t.Errorf("IsIgnored(%q) = %v, want %v", tt.uri, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Save
// ///////////////////////////////////////////////

func TestConfig_Save_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	orig := DefaultConfig()
	orig.Discord.ClientID = "123456789012345678"
	orig.Presence.PollIntervalSeconds = 10
	orig.Privacy.Ignore = []string{"Podcasts/**"}

	if err := orig.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	loaded := DefaultConfig()
	if err := toml.Unmarshal(data, loaded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(loaded, orig) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, orig)
	}
}

// ///////////////////////////////////////////////
// Validate
// ///////////////////////////////////////////////

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(cfg *Config)
		wantErr bool
	}{
		{"default config passes", func(cfg *Config) {}, false},
		{"bad client id is not fatal", func(cfg *Config) { cfg.Discord.ClientID = "x" }, false},
		{"uppercase log level", func(cfg *Config) { cfg.Log.Level = "DEBUG" }, false},
		{"invalid log level", func(cfg *Config) { cfg.Log.Level = "verbose" }, true},
		{"zero log size", func(cfg *Config) { cfg.Log.MaxSizeMB = 0 }, true},
		{"zero push interval", func(cfg *Config) { cfg.Presence.PushIntervalSeconds = 0 }, true},
		{"negative reconnect interval", func(cfg *Config) { cfg.Presence.ReconnectIntervalSeconds = -1 }, true},
		{"zero poll interval", func(cfg *Config) { cfg.Presence.PollIntervalSeconds = 0 }, true},
		{"zero discovery timeout", func(cfg *Config) { cfg.MPD.DiscoveryTimeoutSeconds = 0 }, true},
		{"empty host", func(cfg *Config) { cfg.MPD.Host = " " }, true},
		{"port out of range", func(cfg *Config) { cfg.MPD.Port = 0 }, true},
		{"bad glob", func(cfg *Config) { cfg.Privacy.Ignore = []string{"Music/[a-"} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_MPDAddr(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.MPDAddr(); got != "localhost:6600" {
		t.Fatalf("MPDAddr = %q", got)
	}
	cfg.MPD.Host = "::1"
	if got := cfg.MPDAddr(); got != "[::1]:6600" {
		t.Fatalf("MPDAddr = %q", got)
	}
}
