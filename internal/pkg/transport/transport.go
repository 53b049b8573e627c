// Package transport provides the byte-channel layer the server core reads
// and writes through: client transports, listening transports and the
// factories that layer one transport on top of another.
package transport

import "io"

// Transport is a bidirectional byte channel bound to one peer.
type Transport interface {
	io.ReadWriteCloser

	// Peek reports whether at least one byte can be read right now
	// without blocking indefinitely.
	Peek() bool

	// Flush pushes any locally buffered writes to the peer.
	Flush() error

	IsOpen() bool
}

// ServerTransport accepts new client transports.
type ServerTransport interface {
	// Listen binds the transport. Must be called before Accept.
	Listen() error

	// Accept blocks until a new client connects or the transport is
	// closed or interrupted.
	Accept() (Transport, error)

	// Close shuts the transport down. Unblocks a pending Accept.
	Close() error

	// Interrupt unblocks a pending Accept, surfacing an interrupted
	// transport error to the accepting goroutine.
	Interrupt()
}

// Factory layers a transport on top of a raw accepted transport.
type Factory interface {
	GetTransport(base Transport) (Transport, error)
}
