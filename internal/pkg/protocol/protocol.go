// Package protocol frames the byte stream of a transport into discrete
// messages the request processor consumes and produces.
package protocol

import (
	"fmt"

	"github.com/costap/threaded/internal/pkg/transport"
)

// Protocol reads and writes framed messages over one transport.
type Protocol interface {
	// ReadMessage returns the next message payload. A clean peer close
	// before the next frame surfaces as an end-of-file transport error.
	ReadMessage() ([]byte, error)

	// WriteMessage frames and sends payload, flushing the transport.
	WriteMessage(payload []byte) error

	// Transport returns the underlying transport.
	Transport() transport.Transport
}

// Factory builds a protocol over a wrapped transport.
type Factory interface {
	GetProtocol(t transport.Transport) (Protocol, error)
}

// Error is a framing-level failure: malformed, truncated or oversized
// frames. Distinct from transport errors so callers can tell a broken
// peer apart from a broken connection.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "protocol error: " + e.Msg
	}
	return fmt.Sprintf("protocol error: %s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf creates a protocol error from a format string.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}
