// Package corrupt provides the single format-corrupt error category that
// the AST reader reports to its caller when it detects a malformed
// buffer: one Error type, one errors.As-based extraction helper.
package corrupt

import (
	"errors"
	"fmt"
)

// An Error signals that the reader detected a malformed packed AST buffer
// at Offset. Malformed input is only ever produced by a bug in the writer
// or by corruption of the buffer, since there is no round-trip ingest path
// from untrusted sources; the reader still bounds-checks every cursor
// advance and reports this single error category rather than panicking.
type Error struct {
	Offset int
	Reason string
}

var _ error = (*Error)(nil)

// Error returns a human-readable description of the corruption.
func (e *Error) Error() string {
	return fmt.Sprintf("format-corrupt AST at offset %d: %s", e.Offset, e.Reason)
}

// At constructs an *Error for the given offset and reason.
func At(offset int, reason string) *Error {
	return &Error{Offset: offset, Reason: reason}
}

// From extracts an *Error from err using errors.As, returning ok=false if
// err does not wrap one.
func From(err error) (e *Error, ok bool) {
	e = new(Error)
	if !errors.As(err, &e) {
		return nil, false
	}
	return e, true
}
