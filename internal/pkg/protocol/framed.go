package protocol

import (
	"encoding/binary"
	"io"

	"github.com/costap/threaded/internal/pkg/transport"
)

// DefaultMaxFrameSize caps frames at 1 MiB unless configured otherwise.
const DefaultMaxFrameSize = 1 << 20

// Framed speaks 4-byte big-endian length-prefixed frames.
type Framed struct {
	t            transport.Transport
	maxFrameSize int
}

// NewFramed creates a framed protocol over t. A maxFrameSize of 0 or
// less picks DefaultMaxFrameSize.
func NewFramed(t transport.Transport, maxFrameSize int) *Framed {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Framed{t: t, maxFrameSize: maxFrameSize}
}

func (f *Framed) ReadMessage() ([]byte, error) {
	var hdr [4]byte
	n, err := io.ReadFull(f.t, hdr[:])
	if err != nil {
		if n > 0 && transport.IsEOF(err) {
			return nil, &Error{Msg: "truncated frame header", Err: err}
		}
		return nil, err
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if uint64(size) > uint64(f.maxFrameSize) {
		return nil, Errorf("frame of %d bytes exceeds limit of %d", size, f.maxFrameSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(f.t, payload); err != nil {
		if transport.IsEOF(err) {
			return nil, &Error{Msg: "truncated frame body", Err: err}
		}
		return nil, err
	}
	return payload, nil
}

func (f *Framed) WriteMessage(payload []byte) error {
	if len(payload) > f.maxFrameSize {
		return Errorf("frame of %d bytes exceeds limit of %d", len(payload), f.maxFrameSize)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := f.t.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := f.t.Write(payload); err != nil {
		return err
	}
	return f.t.Flush()
}

func (f *Framed) Transport() transport.Transport { return f.t }

// FramedFactory builds Framed protocols with a fixed frame size limit.
type FramedFactory struct {
	MaxFrameSize int
}

func (f FramedFactory) GetProtocol(t transport.Transport) (Protocol, error) {
	return NewFramed(t, f.MaxFrameSize), nil
}
