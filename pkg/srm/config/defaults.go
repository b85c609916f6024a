// Package config loads srm settings from $XDG_CONFIG_HOME/srm/config.yaml
// and SRM_* environment variables, and resolves the per-user directories
// every other package receives explicitly.
package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultRetention is the retention applied when trash is called
	// without a duration.
	DefaultRetention = "7d"

	// DefaultSweepInterval is the pause between sweeps in srmd.
	DefaultSweepInterval = "300s"

	// DefaultHistoryRetentionDays is how long journal events are kept.
	DefaultHistoryRetentionDays = 90

	appName = "srm"
)

// DataDir returns $XDG_DATA_HOME/srm, home of the trash, metadata,
// history database, socket and PID file.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// StateDir returns $XDG_STATE_HOME/srm for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// DefaultStorageDir returns the safe-storage directory.
func DefaultStorageDir() string {
	return filepath.Join(DataDir(), "trash")
}

// DefaultMetadataPath returns the metadata document path.
func DefaultMetadataPath() string {
	return filepath.Join(DataDir(), "metadata.json")
}

// DefaultHistoryPath returns the history database directory.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultSocketPath returns the srmd control socket path.
func DefaultSocketPath() string {
	return filepath.Join(DataDir(), "srmd.sock")
}

// DefaultPIDPath returns the srmd PID file path.
func DefaultPIDPath() string {
	return filepath.Join(DataDir(), "srmd.pid")
}

// DefaultStatusPath returns the srmd status file path.
func DefaultStatusPath() string {
	return filepath.Join(DataDir(), "srmd.status.json")
}

// DefaultLogPath returns the log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "srm.log")
}
