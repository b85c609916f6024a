package store

import (
	"path/filepath"
	"time"

	"github.com/jamesainslie/srm/pkg/srm/rule"
)

// Entry records one file moved into safe storage.
// It is identified by StoredPath; Name is the identifier users type.
type Entry struct {
	// OriginalPath is the absolute path the file lived at before trashing.
	OriginalPath string `json:"original_path" yaml:"original_path" toml:"original_path"`

	// StoredPath is the absolute path inside safe storage.
	StoredPath string `json:"stored_path" yaml:"stored_path" toml:"stored_path"`

	// CreatedAt is the file's creation time, zero when the filesystem
	// did not report one at trash time.
	CreatedAt time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty" toml:"created_at,omitempty"`

	TrashedAt time.Time `json:"trashed_at" yaml:"trashed_at" toml:"trashed_at"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at" toml:"expires_at"`
	SizeBytes int64     `json:"size_bytes" yaml:"size_bytes" toml:"size_bytes"`

	// Checksum is the hex SHA-256 of the content at trash time.
	// Empty for directories or when hashing failed.
	Checksum string `json:"checksum,omitempty" yaml:"checksum,omitempty" toml:"checksum,omitempty"`

	IsDir bool `json:"is_dir,omitempty" yaml:"is_dir,omitempty" toml:"is_dir,omitempty"`

	// Rule is the optional retention rule supplied at trash time.
	Rule *rule.Rule `json:"rule,omitempty" yaml:"rule,omitempty" toml:"rule,omitempty"`
}

// Name returns the base name of the stored file.
func (e Entry) Name() string {
	return filepath.Base(e.StoredPath)
}

// Expired reports whether the retention period ended at or before now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
