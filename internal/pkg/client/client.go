// Package client provides a small framed-protocol client for talking to
// the threaded server.
package client

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/costap/threaded/internal/pkg/protocol"
	"github.com/costap/threaded/internal/pkg/transport"
)

// Client holds one connection to a server and performs synchronous
// request/response exchanges over it.
type Client struct {
	log          *zap.Logger
	target       string
	maxFrameSize int
	sock         *transport.Socket
	proto        protocol.Protocol
}

func New(log *zap.Logger, target string) *Client {
	return &Client{log: log, target: target}
}

// SetMaxFrameSize overrides the frame size limit used after Connect.
// Must be called before Connect.
func (c *Client) SetMaxFrameSize(size int) { c.maxFrameSize = size }

// Connect dials the server within timeout.
func (c *Client) Connect(timeout time.Duration) error {
	sock, err := transport.Dial(c.target, timeout)
	if err != nil {
		return fmt.Errorf("cannot connect to %s: %w", c.target, err)
	}
	c.log.Debug("connected to server", zap.String("target", c.target))
	c.sock = sock
	c.proto = protocol.NewFramed(transport.NewBuffered(sock, 0), c.maxFrameSize)
	return nil
}

// Call sends payload as one frame and waits for the reply frame.
func (c *Client) Call(payload []byte) ([]byte, error) {
	if c.proto == nil {
		return nil, transport.NewError(transport.NotOpen, nil)
	}
	if err := c.proto.WriteMessage(payload); err != nil {
		return nil, fmt.Errorf("cannot send request: %w", err)
	}
	reply, err := c.proto.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("cannot read response: %w", err)
	}
	return reply, nil
}

func (c *Client) Close() error {
	if c.sock == nil {
		return nil
	}
	return c.sock.Close()
}
