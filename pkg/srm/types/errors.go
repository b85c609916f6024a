package types

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Kind implements error so that
// errors.Is(err, types.NotFound) works on any wrapped *Error.
type Kind int

// Error kinds surfaced by srm operations.
const (
	KindUnknown Kind = iota
	NotFound
	InvalidArgument
	FilesystemError
	MoveFailed
	DestinationOccupied
	PersistenceFailed
	ParseError
	ChecksumMismatch
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	NotFound:            "not found",
	InvalidArgument:     "invalid argument",
	FilesystemError:     "filesystem error",
	MoveFailed:          "move failed",
	DestinationOccupied: "destination occupied",
	PersistenceFailed:   "persistence failed",
	ParseError:          "parse error",
	ChecksumMismatch:    "checksum mismatch",
}

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error implements the error interface.
func (k Kind) Error() string {
	return k.String()
}

// Error is a classified failure for a single operation on a single path.
type Error struct {
	// Kind is the failure class.
	Kind Kind

	// Op is the operation that failed ("trash", "restore", "purge", ...).
	Op string

	// Path is the file the operation was acting on, if any.
	Path string

	// Err is the underlying cause, if any.
	Err error
}

// E builds an *Error.
func E(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain,
// or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return KindUnknown
}
