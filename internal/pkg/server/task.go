package server

import (
	"errors"

	"go.uber.org/zap"

	"github.com/costap/threaded/internal/pkg/protocol"
	"github.com/costap/threaded/internal/pkg/transport"
)

// task services one accepted connection on its own goroutine. It holds
// only the capabilities it needs: the registry to deregister from, the
// shared processor, its own protocol pair, the optional event handler
// and a logger.
type task struct {
	id        string
	processor Processor
	in, out   protocol.Protocol
	registry  *registry
	handler   EventHandler
	log       *zap.Logger
}

// run executes the request loop and cleans up. Each tail step is
// independent: a failed input close never skips the output close, and
// deregistration happens no matter how the rest went.
func (t *task) run() {
	defer t.registry.deregister(t)

	if t.handler != nil {
		t.handler.ConnBegin(t.in, t.out)
	}
	t.loop()
	if t.handler != nil {
		t.handler.ConnEnd(t.in, t.out)
	}

	if err := t.in.Transport().Close(); err != nil {
		t.log.Error("input transport close failed", zap.String("conn", t.id), zap.Error(err))
	}
	if err := t.out.Transport().Close(); err != nil {
		t.log.Error("output transport close failed", zap.String("conn", t.id), zap.Error(err))
	}
}

// loop runs request/response cycles until the processor reports no
// further request, fails, or the input has no more data ready. Errors
// end this connection only; nothing propagates past the task.
func (t *task) loop() {
	defer func() {
		if p := recover(); p != nil {
			t.log.Error("processor panicked", zap.String("conn", t.id), zap.Any("panic", p))
		}
	}()
	for {
		more, err := t.processor.Process(t.in, t.out)
		if err != nil {
			var te *transport.Error
			var pe *protocol.Error
			switch {
			case errors.As(err, &te):
				t.log.Error("client died", zap.String("conn", t.id),
					zap.Stringer("kind", te.Kind), zap.Error(err))
			case errors.As(err, &pe):
				t.log.Error("protocol error on connection", zap.String("conn", t.id), zap.Error(err))
			default:
				t.log.Error("connection failed with unexpected error", zap.String("conn", t.id), zap.Error(err))
			}
			return
		}
		if !more {
			return
		}
		// One shot per readiness window: a client that has not already
		// pipelined the next request ends the connection here.
		if !t.in.Transport().Peek() {
			return
		}
	}
}
