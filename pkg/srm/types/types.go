// Package types provides the shared vocabulary of srm: classified errors,
// the duration grammar used by both configuration and the command line,
// and size parsing and formatting.
package types

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// Duration constants.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// DefaultRetention is used when neither the caller nor the configuration
// supplies a retention duration.
const DefaultRetention = 7 * Day

// ErrInvalidDuration indicates that the duration string could not be parsed.
var ErrInvalidDuration = errors.New("invalid duration format")

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeValue indicates that a negative value was provided.
var ErrNegativeValue = errors.New("value cannot be negative")

// durationUnits is the single unit table for every duration string srm accepts.
var durationUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"w", Week},
	{"d", Day},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

var durationPattern = regexp.MustCompile(`(?i)^\s*([0-9]+)\s*([smhdw])\s*$`)

var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ParseDuration parses an integer followed by one of s, m, h, d or w:
// "30m", "12h", "7d", "2w". Failures are InvalidArgument errors.
func ParseDuration(s string) (time.Duration, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, E(InvalidArgument, "parse duration", "", fmt.Errorf("%w: empty string", ErrInvalidDuration))
	}
	if strings.HasPrefix(trimmed, "-") {
		return 0, E(InvalidArgument, "parse duration", "", fmt.Errorf("%w: %q", ErrNegativeValue, s))
	}

	matches := durationPattern.FindStringSubmatch(trimmed)
	if matches == nil {
		return 0, E(InvalidArgument, "parse duration", "", fmt.Errorf("%w: %q", ErrInvalidDuration, s))
	}

	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, E(InvalidArgument, "parse duration", "", fmt.Errorf("%w: %q", ErrInvalidDuration, s))
	}

	suffix := strings.ToLower(matches[2])
	for _, u := range durationUnits {
		if u.suffix != suffix {
			continue
		}
		if value > int64(time.Duration(1<<63-1)/u.unit) {
			return 0, E(InvalidArgument, "parse duration", "", fmt.Errorf("%w: %q overflows", ErrInvalidDuration, s))
		}
		return time.Duration(value) * u.unit, nil
	}
	return 0, E(InvalidArgument, "parse duration", "", fmt.Errorf("%w: unknown suffix %q", ErrInvalidDuration, suffix))
}

// FormatDuration renders d with the largest unit that divides it evenly,
// so the result parses back to the same value. Sub-second remainders are dropped.
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d <= 0 {
		return "0s"
	}
	for _, u := range durationUnits {
		if d%u.unit == 0 {
			return strconv.FormatInt(int64(d/u.unit), 10) + u.suffix
		}
	}
	return strconv.FormatInt(int64(d/time.Second), 10) + "s"
}

// Duration is a time.Duration that encodes as the srm duration grammar
// in JSON, YAML and TOML.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return FormatDuration(time.Duration(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// ParseSize parses a human-readable size string and returns the size in bytes.
// Accepted forms include "1024", "512B", "100K", "50MiB", "2GB" and "1.5T";
// all suffixes are binary multiples. Failures are InvalidArgument errors.
func ParseSize(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, E(InvalidArgument, "parse size", "", fmt.Errorf("%w: empty string", ErrInvalidSize))
	}
	if strings.HasPrefix(trimmed, "-") {
		return 0, E(InvalidArgument, "parse size", "", fmt.Errorf("%w: %q", ErrNegativeValue, s))
	}

	matches := sizePattern.FindStringSubmatch(trimmed)
	if matches == nil {
		return 0, E(InvalidArgument, "parse size", "", fmt.Errorf("%w: %q", ErrInvalidSize, s))
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, E(InvalidArgument, "parse size", "", fmt.Errorf("%w: %q", ErrInvalidSize, s))
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, E(InvalidArgument, "parse size", "", fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix))
	}

	bytes := value * float64(multiplier)
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if bytes >= float64(math.MaxInt64) {
		return 0, E(InvalidArgument, "parse size", "", fmt.Errorf("%w: %q overflows", ErrInvalidSize, s))
	}
	return int64(bytes), nil
}

// FormatSize converts a size in bytes to a human-readable string using IEC units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
