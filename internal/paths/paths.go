// Package paths names the files playcord keeps in its data directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile    = "daemon.pid"
	ConfigFile = "config.toml"
	LogFile    = "daemon.log"
)

const (
	BinaryName = "playcord"
	// DataDirRel is the data directory relative to the user's home.
	DataDirRel = ".playcord"
	// DataDirEnv overrides the data directory location.
	DataDirEnv = "PLAYCORD_HOME"
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir builds paths rooted at a data directory.
type DataDir struct {
	Root string
}

// Resolve picks the data directory: override if set, then $PLAYCORD_HOME,
// then ~/.playcord. The directory is not created.
func Resolve(override string) (DataDir, error) {
	if override != "" {
		return DataDir{Root: override}, nil
	}
	if env := os.Getenv(DataDirEnv); env != "" {
		return DataDir{Root: env}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDir{}, fmt.Errorf("locating home directory: %w", err)
	}
	return DataDir{Root: filepath.Join(home, DataDirRel)}, nil
}

// Ensure creates the directory if it does not exist.
func (d DataDir) Ensure() error {
	return os.MkdirAll(d.Root, 0o755)
}

func (d DataDir) PID() string    { return filepath.Join(d.Root, PIDFile) }
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }
func (d DataDir) Log() string    { return filepath.Join(d.Root, LogFile) }

// ConfigBackup is where a config is copied before migration.
func (d DataDir) ConfigBackup() string { return d.Config() + ".bak" }
