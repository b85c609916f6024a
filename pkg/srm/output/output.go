// Package output renders the tracked-entry listing in several formats
// (table, plain, json, yaml, toml, tree).
//
// Formatters are looked up by name in a registry:
//
//	f, err := output.Get("json")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := f.Format(&buf, listing); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/jamesainslie/srm/pkg/srm/store"
)

// Item is one tracked entry prepared for display.
type Item struct {
	Name         string    `json:"name" yaml:"name" toml:"name"`
	OriginalPath string    `json:"original_path" yaml:"original_path" toml:"original_path"`
	StoredPath   string    `json:"stored_path" yaml:"stored_path" toml:"stored_path"`
	Size         int64     `json:"size_bytes" yaml:"size_bytes" toml:"size_bytes"`
	SizeHuman    string    `json:"size_human" yaml:"size_human" toml:"size_human"`
	TrashedAt    time.Time `json:"trashed_at" yaml:"trashed_at" toml:"trashed_at"`
	ExpiresAt    time.Time `json:"expires_at" yaml:"expires_at" toml:"expires_at"`
	ExpiresIn    string    `json:"expires_in" yaml:"expires_in" toml:"expires_in"`
	Due          bool      `json:"due" yaml:"due" toml:"due"`
	IsDir        bool      `json:"is_dir,omitempty" yaml:"is_dir,omitempty" toml:"is_dir,omitempty"`
	Rule         string    `json:"rule,omitempty" yaml:"rule,omitempty" toml:"rule,omitempty"`
}

// Listing is the data every formatter renders.
type Listing struct {
	Items      []Item    `json:"entries" yaml:"entries" toml:"entries"`
	StorageDir string    `json:"storage_dir" yaml:"storage_dir" toml:"storage_dir"`
	Generated  time.Time `json:"generated" yaml:"generated" toml:"generated"`
}

// NewListing converts entries for display, ordered by expiry.
func NewListing(entries []store.Entry, storageDir string, now time.Time) *Listing {
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		it := Item{
			Name:         e.Name(),
			OriginalPath: e.OriginalPath,
			StoredPath:   e.StoredPath,
			Size:         e.SizeBytes,
			SizeHuman:    humanize.IBytes(uint64(max(e.SizeBytes, 0))),
			TrashedAt:    e.TrashedAt,
			ExpiresAt:    e.ExpiresAt,
			Due:          e.Expired(now),
			IsDir:        e.IsDir,
		}
		if it.Due {
			it.ExpiresIn = "due"
		} else {
			it.ExpiresIn = humanize.RelTime(now, e.ExpiresAt, "left", "ago")
		}
		if !e.Rule.IsZero() {
			it.Rule = e.Rule.String()
		}
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ExpiresAt.Before(items[j].ExpiresAt)
	})
	return &Listing{Items: items, StorageDir: storageDir, Generated: now}
}

// TotalSize returns the sum of all item sizes.
func (l *Listing) TotalSize() int64 {
	var total int64
	for _, it := range l.Items {
		total += it.Size
	}
	return total
}

// Formatter renders a Listing.
type Formatter interface {
	Format(w *bytes.Buffer, l *Listing) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds or replaces a formatter factory.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (available: %v)", name, r.available())
	}
	return factory(), nil
}

// Available returns the registered names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available()
}

func (r *Registry) available() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// DefaultFormat is "table" on a terminal and "plain" otherwise.
func DefaultFormat(f *os.File) string {
	if f != nil && term.IsTerminal(int(f.Fd())) {
		return "table"
	}
	return "plain"
}
