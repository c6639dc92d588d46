// Package migrate upgrades versioned on-disk documents one schema step at a
// time.
package migrate

import (
	"fmt"
	"log/slog"
	"slices"
)

// Migration upgrades a document to Version from the version before it.
type Migration struct {
	// Version is the schema version the upgrade produces.
	Version int
	// Description labels the step in log output.
	Description string
	// Upgrade rewrites the raw document.
	Upgrade func(data []byte) ([]byte, error)
}

// Registry holds the migrations for one document kind. Version numbers are
// independent between registries.
type Registry struct {
	// CurrentVersion is the version the running binary reads and writes.
	CurrentVersion int
	// Migrations is exported so tests can substitute their own list.
	Migrations []Migration
}

// Register adds m. It panics when m.Version is already registered, since two
// upgrades to the same version can never both be right.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: duplicate migration version %d (%q)", m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// NeedsMigration reports whether a document at fileVersion is behind the
// registry or has a registered step it has not seen.
func (r *Registry) NeedsMigration(fileVersion int) bool {
	if fileVersion != r.CurrentVersion {
		return true
	}
	return slices.ContainsFunc(r.Migrations, func(m Migration) bool {
		return fileVersion < m.Version
	})
}

// Run applies, in version order, every migration newer than fromVersion. It
// returns the rewritten data and the version reached. On failure the version
// is the last one successfully applied.
func (r *Registry) Run(data []byte, fromVersion int) ([]byte, int, error) {
	steps := slices.Clone(r.Migrations)
	slices.SortFunc(steps, func(a, b Migration) int { return a.Version - b.Version })

	version := fromVersion
	for _, m := range steps {
		if m.Version <= version {
			continue
		}
		slog.Info("applying migration", "version", m.Version, "description", m.Description)
		out, err := m.Upgrade(data)
		if err != nil {
			return nil, version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
		}
		data, version = out, m.Version
	}
	return data, version, nil
}
