package transport

import (
	"bufio"

	"go.uber.org/multierr"
)

const defaultBufferSize = 4096

// Buffered layers read and write buffering over a base transport.
type Buffered struct {
	base Transport
	r    *bufio.Reader
	w    *bufio.Writer
}

// NewBuffered wraps base with size-byte buffers. A size of 0 or less
// picks the default.
func NewBuffered(base Transport, size int) *Buffered {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Buffered{
		base: base,
		r:    bufio.NewReaderSize(base, size),
		w:    bufio.NewWriterSize(base, size),
	}
}

func (b *Buffered) Read(p []byte) (int, error)  { return b.r.Read(p) }
func (b *Buffered) Write(p []byte) (int, error) { return b.w.Write(p) }

func (b *Buffered) Peek() bool {
	return b.r.Buffered() > 0 || b.base.Peek()
}

func (b *Buffered) Flush() error {
	if err := b.w.Flush(); err != nil {
		return err
	}
	return b.base.Flush()
}

// Close flushes pending writes, then closes the base transport. The base
// is closed even when the flush fails.
func (b *Buffered) Close() error {
	var err error
	if b.base.IsOpen() && b.w.Buffered() > 0 {
		err = b.w.Flush()
	}
	return multierr.Append(err, b.base.Close())
}

func (b *Buffered) IsOpen() bool { return b.base.IsOpen() }

// BufferedFactory produces Buffered transports of a fixed size.
type BufferedFactory struct {
	Size int
}

func (f BufferedFactory) GetTransport(base Transport) (Transport, error) {
	return NewBuffered(base, f.Size), nil
}
