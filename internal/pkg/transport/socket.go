package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"
)

// peekWindow bounds how long Peek waits for a byte to become readable.
// Readiness means "the client already sent more", so the window only has
// to cover in-flight bytes, not client think time.
const peekWindow = 10 * time.Millisecond

// Socket is a TCP client transport. Reads go through a bufio.Reader so
// Peek can answer from buffered bytes.
type Socket struct {
	conn net.Conn
	r    *bufio.Reader
}

// NewSocket wraps an established connection.
func NewSocket(conn net.Conn) *Socket {
	return &Socket{conn: conn, r: bufio.NewReader(conn)}
}

// Dial connects to addr within timeout and returns the socket transport.
func Dial(addr string, timeout time.Duration) (*Socket, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, NewError(NotOpen, err)
	}
	return NewSocket(conn), nil
}

func (s *Socket) Read(p []byte) (int, error) {
	if s.conn == nil {
		return 0, NewError(NotOpen, nil)
	}
	n, err := s.r.Read(p)
	if err != nil {
		return n, mapNetError(err)
	}
	return n, nil
}

func (s *Socket) Write(p []byte) (int, error) {
	if s.conn == nil {
		return 0, NewError(NotOpen, nil)
	}
	n, err := s.conn.Write(p)
	if err != nil {
		return n, mapNetError(err)
	}
	return n, nil
}

// Peek reports whether a byte is readable without blocking past the peek
// window. A byte pulled in by the probe stays in the read buffer.
func (s *Socket) Peek() bool {
	if s.conn == nil {
		return false
	}
	if s.r.Buffered() > 0 {
		return true
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(peekWindow)); err != nil {
		return false
	}
	_, err := s.r.Peek(1)
	_ = s.conn.SetReadDeadline(time.Time{})
	return err == nil
}

// Flush is a no-op; socket writes are unbuffered.
func (s *Socket) Flush() error { return nil }

// Close is idempotent; closing a closed socket returns nil.
func (s *Socket) Close() error {
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return NewError(Unknown, err)
	}
	return nil
}

func (s *Socket) IsOpen() bool { return s.conn != nil }

// RemoteAddr returns the peer address, or nil if the socket is closed.
func (s *Socket) RemoteAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

func mapNetError(err error) error {
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	switch {
	case errors.Is(err, io.EOF):
		return NewError(EndOfFile, err)
	case errors.Is(err, net.ErrClosed):
		return NewError(NotOpen, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return NewError(Timeout, err)
	}
	return NewError(Unknown, err)
}
