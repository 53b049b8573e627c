package transport

import (
	"errors"
	"net"
	"sync"
)

// ServerSocket is a TCP listening transport. Interrupt closes the
// listener so a blocked Accept returns an interrupted transport error,
// which the serve loop treats as the expected shutdown signal.
type ServerSocket struct {
	addr string

	mu          sync.Mutex
	listener    net.Listener
	interrupted bool
}

// NewServerSocket creates a listening transport for addr, e.g. ":9090".
func NewServerSocket(addr string) *ServerSocket {
	return &ServerSocket{addr: addr}
}

func (s *ServerSocket) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return NewError(NotOpen, err)
	}
	s.listener = l
	s.interrupted = false
	return nil
}

func (s *ServerSocket) Accept() (Transport, error) {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return nil, NewError(NotOpen, nil)
	}
	conn, err := l.Accept()
	if err != nil {
		return nil, mapAcceptError(err)
	}
	return NewSocket(conn), nil
}

// mapAcceptError classifies listener failures. Transient accept-queue
// failures like EMFILE or ECONNABORTED arrive as plain OpErrors and must
// stay recoverable, so anything unrecognized is still tagged as a
// transport error rather than surfaced raw.
func mapAcceptError(err error) *Error {
	if errors.Is(err, net.ErrClosed) {
		return NewError(Interrupted, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return NewError(Timeout, err)
	}
	return NewError(Unknown, err)
}

// Interrupt unblocks a pending Accept by closing the listener. The next
// Listen rebinds the address.
func (s *ServerSocket) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupted = true
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Close is idempotent.
func (s *ServerSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	l := s.listener
	s.listener = nil
	if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return NewError(Unknown, err)
	}
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *ServerSocket) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
