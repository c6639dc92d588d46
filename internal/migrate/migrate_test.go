// Tests for [Registry] ordering, version skipping and error propagation, and
// for the registered config.toml migrations.
package migrate

import (
	"errors"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
)

// ///////////////////////////////////////////////
// Registry
// ///////////////////////////////////////////////

func appendStep(suffix string) func([]byte) ([]byte, error) {
	return func(d []byte) ([]byte, error) {
		return append(d, suffix...), nil
	}
}

func TestRunAppliesInVersionOrder(t *testing.T) {
	r := &Registry{CurrentVersion: 3}
	r.Register(Migration{Version: 3, Description: "v2->v3", Upgrade: appendStep("-v3")})
	r.Register(Migration{Version: 2, Description: "v1->v2", Upgrade: appendStep("-v2")})

	out, version, err := r.Run([]byte("data"), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 3 {
		t.Fatalf("expected version 3, got %d", version)
	}
	if string(out) != "data-v2-v3" {
		t.Fatalf("expected data-v2-v3, got %q", out)
	}
}

func TestRunSkipsAppliedVersions(t *testing.T) {
	r := &Registry{CurrentVersion: 2}
	r.Register(Migration{Version: 2, Description: "already applied", Upgrade: func([]byte) ([]byte, error) {
		t.Fatal("migration should have been skipped")
		return nil, nil
	}})

	out, version, err := r.Run([]byte("data"), 2)
	if err != nil || version != 2 || string(out) != "data" {
		t.Fatalf("Run = (%q, %d, %v), want (data, 2, nil)", out, version, err)
	}
}

func TestRunStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	r := &Registry{CurrentVersion: 3}
	r.Register(Migration{Version: 2, Description: "ok", Upgrade: appendStep("-v2")})
	r.Register(Migration{Version: 3, Description: "fails", Upgrade: func([]byte) ([]byte, error) {
		return nil, boom
	}})

	_, version, err := r.Run([]byte("data"), 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if !strings.Contains(err.Error(), "migration to v3 failed") {
		t.Fatalf("unexpected message: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2 (stopped before v3), got %d", version)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := &Registry{}
	r.Register(Migration{Version: 2})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for duplicate version")
		}
	}()
	r.Register(Migration{Version: 2})
}

func TestNeedsMigration(t *testing.T) {
	r := &Registry{CurrentVersion: 2, Migrations: []Migration{{Version: 2}}}
	tests := []struct {
		version int
		want    bool
	}{
		{1, true},
		{2, false},
		{3, true},
	}
	for _, tt := range tests {
		if got := r.NeedsMigration(tt.version); got != tt.want {
			t.Fatalf("NeedsMigration(%d) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

// ///////////////////////////////////////////////
// Config v1 -> v2
// ///////////////////////////////////////////////

func TestConfigV2InvertsHideFlags(t *testing.T) {
	v1 := `
[discord]
client_id = "1041018234058571847"

[presence]
enabled = true
hide_artist = true
hide_album = false
`
	out, version, err := Config.Run([]byte(v1), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2, got %d", version)
	}

	doc := map[string]any{}
	if _, err := toml.Decode(string(out), &doc); err != nil {
		t.Fatalf("migrated config does not parse: %v\n%s", err, out)
	}
	if doc["version"] != int64(2) {
		t.Fatalf("version field = %v, want 2", doc["version"])
	}
	discord := doc["discord"].(map[string]any)
	if discord["client_id"] != "1041018234058571847" {
		t.Fatalf("unrelated key lost: %v", discord)
	}
	presence := doc["presence"].(map[string]any)
	if presence["show_artist"] != false || presence["show_album"] != true {
		t.Fatalf("unexpected presence table: %v", presence)
	}
	if _, ok := presence["hide_artist"]; ok {
		t.Fatal("hide_artist should be removed")
	}
	if presence["enabled"] != true {
		t.Fatalf("enabled lost: %v", presence)
	}
}

func TestConfigV2WithoutPresenceTable(t *testing.T) {
	out, _, err := Config.Run([]byte("[log]\nlevel = \"debug\"\n"), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(string(out), `level = "debug"`) {
		t.Fatalf("log table lost:\n%s", out)
	}
}

func TestConfigV2RejectsNonBoolean(t *testing.T) {
	_, _, err := Config.Run([]byte("[presence]\nhide_album = \"yes\"\n"), 1)
	if err == nil {
		t.Fatal("expected error for non-boolean hide_album")
	}
}
