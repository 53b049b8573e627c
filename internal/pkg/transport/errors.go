package transport

import (
	"errors"
	"fmt"
)

// Kind classifies transport errors so callers can tell an interrupted
// accept or a clean end-of-stream apart from a genuine failure.
type Kind int

const (
	Unknown Kind = iota
	NotOpen
	Interrupted
	EndOfFile
	Timeout
)

func (k Kind) String() string {
	switch k {
	case NotOpen:
		return "not open"
	case Interrupted:
		return "interrupted"
	case EndOfFile:
		return "end of file"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a transport-level failure tagged with a Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport error: %s", e.Kind)
	}
	return fmt.Sprintf("transport error (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a transport error of the given kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// IsInterrupted reports whether err is an interrupted transport error.
func IsInterrupted(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == Interrupted
}

// IsEOF reports whether err is an end-of-file transport error.
func IsEOF(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == EndOfFile
}

// IsTimeout reports whether err is a timeout transport error.
func IsTimeout(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == Timeout
}
