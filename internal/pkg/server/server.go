// Package server implements a thread-per-connection server core: every
// accepted connection is serviced by its own goroutine, live workers are
// tracked in a registry, and Stop drains the registry before Serve
// returns.
package server

import (
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/costap/threaded/internal/pkg/protocol"
	"github.com/costap/threaded/internal/pkg/transport"
)

// Processor executes one request/response cycle on a connection's
// protocol pair and reports whether another cycle should follow. One
// instance is shared by every connection, so implementations must be
// safe for concurrent use.
type Processor interface {
	Process(in, out protocol.Protocol) (bool, error)
}

// EventHandler observes server lifecycle events. Side effects only; the
// server ignores anything a handler does.
type EventHandler interface {
	PreServe()
	ConnBegin(in, out protocol.Protocol)
	ConnEnd(in, out protocol.Protocol)
}

// Server owns the listening transport, the factories that wrap accepted
// connections, the shared processor and the registry of live workers.
// Serve may be called again after a completed Stop.
type Server struct {
	log       *zap.Logger
	transport transport.ServerTransport
	processor Processor

	inFactory       transport.Factory
	outFactory      transport.Factory
	inProtoFactory  protocol.Factory
	outProtoFactory protocol.Factory

	handler  EventHandler
	launch   func(func())
	registry *registry
	stop     atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithTransportFactories overrides the input and output transport
// factories. The default buffers both directions.
func WithTransportFactories(in, out transport.Factory) Option {
	return func(s *Server) {
		s.inFactory = in
		s.outFactory = out
	}
}

// WithProtocolFactories overrides the input and output protocol
// factories. The default is the framed protocol with its default limit.
func WithProtocolFactories(in, out protocol.Factory) Option {
	return func(s *Server) {
		s.inProtoFactory = in
		s.outProtoFactory = out
	}
}

// WithEventHandler installs a lifecycle observer.
func WithEventHandler(h EventHandler) Option {
	return func(s *Server) { s.handler = h }
}

// WithLauncher replaces how worker goroutines are started, e.g. to hand
// tasks to a pool.
func WithLauncher(launch func(func())) Option {
	return func(s *Server) { s.launch = launch }
}

// New creates a server around st and processor.
func New(log *zap.Logger, st transport.ServerTransport, processor Processor, opts ...Option) *Server {
	s := &Server{
		log:             log,
		transport:       st,
		processor:       processor,
		inFactory:       transport.BufferedFactory{},
		outFactory:      transport.BufferedFactory{},
		inProtoFactory:  protocol.FramedFactory{},
		outProtoFactory: protocol.FramedFactory{},
		launch:          func(f func()) { go f() },
		registry:        newRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections until Stop is requested, then closes the
// listening transport, waits for every in-flight worker to finish and
// returns. Errors never surface to the caller; they go to the logger.
func (s *Server) Serve() {
	if err := s.transport.Listen(); err != nil {
		s.log.Error("server transport failed to listen", zap.Error(err))
		return
	}
	if s.handler != nil {
		s.handler.PreServe()
	}

	for !s.stop.Load() {
		client, err := s.transport.Accept()
		if err != nil {
			var te *transport.Error
			if errors.As(err, &te) {
				if te.Kind == transport.Interrupted && s.stop.Load() {
					// Expected: shutdown closed the listener under us.
					continue
				}
				s.log.Error("server transport died on accept",
					zap.Stringer("kind", te.Kind), zap.Error(err))
				continue
			}
			// Unrecognized failure: abandon the serve loop rather than
			// spin on an error we cannot classify.
			s.log.Error("unknown error on accept, leaving serve loop", zap.Error(err))
			break
		}
		s.startTask(client)
	}

	if s.stop.Load() {
		if err := s.transport.Close(); err != nil {
			s.log.Error("error shutting down server transport", zap.Error(err))
		}
		s.registry.waitUntilEmpty()
		s.stop.Store(false)
	}
}

// startTask wraps client through the factories, registers a task for it
// and launches the worker. Any wrap failure closes whatever was built so
// far and is logged; the serve loop carries on.
func (s *Server) startTask(client transport.Transport) {
	inT, err := s.inFactory.GetTransport(client)
	if err != nil {
		s.log.Error("input transport factory failed", zap.Error(err))
		s.closeAll(client)
		return
	}
	outT, err := s.outFactory.GetTransport(client)
	if err != nil {
		s.log.Error("output transport factory failed", zap.Error(err))
		s.closeAll(inT, client)
		return
	}
	inP, err := s.inProtoFactory.GetProtocol(inT)
	if err != nil {
		s.log.Error("input protocol factory failed", zap.Error(err))
		s.closeAll(inT, outT, client)
		return
	}
	outP, err := s.outProtoFactory.GetProtocol(outT)
	if err != nil {
		s.log.Error("output protocol factory failed", zap.Error(err))
		s.closeAll(inT, outT, client)
		return
	}

	t := &task{
		id:        uuid.NewString(),
		processor: s.processor,
		in:        inP,
		out:       outP,
		registry:  s.registry,
		handler:   s.handler,
		log:       s.log,
	}
	// Register before launch so the registry can never miss a live
	// worker during a drain.
	s.registry.register(t)
	s.launch(t.run)
}

func (s *Server) closeAll(transports ...transport.Transport) {
	for _, t := range transports {
		if t == nil {
			continue
		}
		if err := t.Close(); err != nil {
			s.log.Error("error closing partially accepted connection", zap.Error(err))
		}
	}
}

// Stop requests shutdown: it flips the stop flag and interrupts the
// listening transport so a blocked Accept returns. The drain itself
// happens inside Serve, which returns once every worker has finished.
// Safe to call more than once.
func (s *Server) Stop() {
	if s.stop.CompareAndSwap(false, true) {
		s.transport.Interrupt()
	}
}

// ConnCount returns the number of currently live workers.
func (s *Server) ConnCount() int {
	return s.registry.size()
}
