package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches a *NotFoundError via errors.Is.
	ErrNotFound = errors.New("store: file not found")
	// ErrFormat matches a *FormatError via errors.Is.
	ErrFormat = errors.New("store: invalid file format")
)

// NotFoundError reports a missing task file.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task file does not exist: %s", e.Path)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// FormatError reports content that cannot be turned into valid records.
// Index is the position of the offending record, or -1 when the whole
// document is unreadable.
type FormatError struct {
	Path   string
	Index  int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("invalid content in %s", e.Path)
	if e.Index >= 0 {
		msg += fmt.Sprintf(" (record %d)", e.Index)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying decode error, if any.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrFormat) match.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}
