// Package processor contains request processors runnable on the threaded
// server. A processor executes one request/response cycle and reports
// whether another should follow on the same connection.
package processor

import (
	"go.uber.org/zap"

	"github.com/costap/threaded/internal/pkg/protocol"
	"github.com/costap/threaded/internal/pkg/transport"
)

// Echo replies to every frame with its own payload. Stateless, so one
// instance is safe to share across connections.
type Echo struct {
	log *zap.Logger
}

func NewEcho(log *zap.Logger) *Echo {
	return &Echo{log: log}
}

// Process reads one frame and writes it back. A clean end-of-stream
// before the next frame ends the connection without error.
func (e *Echo) Process(in, out protocol.Protocol) (bool, error) {
	msg, err := in.ReadMessage()
	if err != nil {
		if transport.IsEOF(err) {
			return false, nil
		}
		return false, err
	}
	e.log.Debug("echoing frame", zap.Int("bytes", len(msg)))
	if err := out.WriteMessage(msg); err != nil {
		return false, err
	}
	return true, nil
}
