// Package rule evaluates per-entry retention rules against file metadata.
package rule

import (
	"errors"
	"strings"
	"time"

	"github.com/jamesainslie/srm/pkg/srm/types"
)

// ErrNoCreationTime is returned when a time-based rule needs a creation
// time the filesystem does not provide.
var ErrNoCreationTime = errors.New("creation time unavailable")

// Rule decides when a trashed file becomes eligible for purge.
// Set fields are OR'd; a rule with no fields set never matches.
type Rule struct {
	// MaxAge makes the file eligible once it is older than this, measured
	// from its creation time.
	MaxAge *types.Duration `json:"max_age,omitempty" yaml:"max_age,omitempty" toml:"max_age,omitempty"`

	// AbsoluteExpiry makes the file eligible if it was created before this instant.
	AbsoluteExpiry *time.Time `json:"absolute_expiry,omitempty" yaml:"absolute_expiry,omitempty" toml:"absolute_expiry,omitempty"`

	// MaxSize makes the file eligible if it is larger than this many bytes.
	MaxSize *int64 `json:"max_size,omitempty" yaml:"max_size,omitempty" toml:"max_size,omitempty"`
}

// FileStat is the subset of file metadata a Rule looks at.
type FileStat struct {
	Size         int64
	CreatedAt    time.Time
	HasCreatedAt bool
}

// IsZero reports whether no field is set.
func (r *Rule) IsZero() bool {
	return r == nil || (r.MaxAge == nil && r.AbsoluteExpiry == nil && r.MaxSize == nil)
}

// Validate rejects negative thresholds.
func (r *Rule) Validate() error {
	if r == nil {
		return nil
	}
	if r.MaxAge != nil && *r.MaxAge < 0 {
		return types.E(types.InvalidArgument, "rule", "", types.ErrNegativeValue)
	}
	if r.MaxSize != nil && *r.MaxSize < 0 {
		return types.E(types.InvalidArgument, "rule", "", types.ErrNegativeValue)
	}
	return nil
}

// Eligible reports whether st satisfies any field of the rule at time now.
// The size check needs no creation time and is evaluated first; a time-based
// field with no creation time available is a FilesystemError.
func (r *Rule) Eligible(st FileStat, now time.Time) (bool, error) {
	if r.IsZero() {
		return false, nil
	}

	if r.MaxSize != nil && st.Size > *r.MaxSize {
		return true, nil
	}

	if r.MaxAge == nil && r.AbsoluteExpiry == nil {
		return false, nil
	}
	if !st.HasCreatedAt {
		return false, types.E(types.FilesystemError, "evaluate rule", "", ErrNoCreationTime)
	}

	if r.MaxAge != nil && now.Sub(st.CreatedAt) > r.MaxAge.Std() {
		return true, nil
	}
	if r.AbsoluteExpiry != nil && st.CreatedAt.Before(*r.AbsoluteExpiry) {
		return true, nil
	}
	return false, nil
}

// String renders the rule for listings, e.g. "age>1d or size>1.0 GiB".
func (r *Rule) String() string {
	if r.IsZero() {
		return ""
	}
	var parts []string
	if r.MaxAge != nil {
		parts = append(parts, "age>"+r.MaxAge.String())
	}
	if r.AbsoluteExpiry != nil {
		parts = append(parts, "created<"+r.AbsoluteExpiry.Format(time.DateOnly))
	}
	if r.MaxSize != nil {
		parts = append(parts, "size>"+types.FormatSize(*r.MaxSize))
	}
	return strings.Join(parts, " or ")
}
