// Package store persists the set of tracked entries as a single JSON
// document. Every Save replaces the whole document through a temporary
// file and a rename, so readers see either the old or the new content.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/jamesainslie/srm/pkg/srm/types"
)

// Store holds the tracked entries of one metadata file in memory.
type Store struct {
	path    string
	mu      sync.Mutex
	entries []Entry
}

// Open loads the metadata document at path. A missing file is an empty
// store; an unreadable file is a FilesystemError and a malformed one a
// ParseError. Nothing is reset on failure.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, types.E(types.InvalidArgument, "open metadata", "", fmt.Errorf("path cannot be empty"))
	}
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the metadata file location.
func (s *Store) Path() string {
	return s.path
}

// Reload replaces the in-memory entries with the document on disk.
// On error the in-memory entries are left as they were.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.entries = nil
			s.mu.Unlock()
			return nil
		}
		return types.E(types.FilesystemError, "read metadata", s.path, err)
	}

	entries, err := Decode(data)
	if err != nil {
		return types.E(types.ParseError, "read metadata", s.path, err)
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Entries returns a copy of the entries in insertion order.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Len returns the number of tracked entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Find returns the entry whose stored file is named name.
func (s *Store) Find(name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Name() == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Contains reports whether storedPath is tracked.
func (s *Store) Contains(storedPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(storedPath) >= 0
}

// Add appends e. Two live entries may never share a StoredPath.
func (s *Store) Add(e Entry) error {
	if e.StoredPath == "" || e.OriginalPath == "" {
		return types.E(types.InvalidArgument, "add entry", e.StoredPath, fmt.Errorf("entry paths cannot be empty"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(e.StoredPath) >= 0 {
		return types.E(types.InvalidArgument, "add entry", e.StoredPath, fmt.Errorf("already tracked"))
	}
	s.entries = append(s.entries, e)
	return nil
}

// Remove drops the entry for storedPath and reports whether it existed.
func (s *Store) Remove(storedPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(storedPath)
	if i < 0 {
		return false
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	return true
}

func (s *Store) indexOf(storedPath string) int {
	return slices.IndexFunc(s.entries, func(e Entry) bool {
		return e.StoredPath == storedPath
	})
}

// Save writes the whole document atomically. Failures are PersistenceFailed.
func (s *Store) Save() error {
	s.mu.Lock()
	data, err := Encode(s.entries)
	s.mu.Unlock()
	if err != nil {
		return types.E(types.PersistenceFailed, "write metadata", s.path, err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return types.E(types.PersistenceFailed, "write metadata", s.path, err)
	}
	return nil
}

// Encode renders entries as the metadata document.
func Encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entries: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses and validates a metadata document. A zero-length
// document is an empty store.
func Decode(data []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("malformed metadata: %w", err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile metadata schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("malformed metadata: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.StoredPath]; dup {
			return nil, fmt.Errorf("duplicate stored_path %q", e.StoredPath)
		}
		seen[e.StoredPath] = struct{}{}
	}
	return entries, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
