package server

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/costap/threaded/internal/pkg/protocol"
	"github.com/costap/threaded/internal/pkg/transport"
)

type fakeTransport struct {
	mu       sync.Mutex
	open     bool
	peek     bool
	closes   int
	closeErr error
}

func newFakeTransport() *fakeTransport { return &fakeTransport{open: true} }

func (f *fakeTransport) Read(p []byte) (int, error) {
	return 0, transport.NewError(transport.EndOfFile, nil)
}
func (f *fakeTransport) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeTransport) Flush() error                { return nil }

func (f *fakeTransport) Peek() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peek
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.open = false
	return f.closeErr
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeProtocol struct {
	t transport.Transport
}

func (f *fakeProtocol) ReadMessage() ([]byte, error) {
	return nil, transport.NewError(transport.EndOfFile, nil)
}
func (f *fakeProtocol) WriteMessage([]byte) error      { return nil }
func (f *fakeProtocol) Transport() transport.Transport { return f.t }

// scriptProcessor replays a fixed sequence of Process outcomes.
type scriptProcessor struct {
	mu     sync.Mutex
	calls  int
	script []func() (bool, error)
}

func (p *scriptProcessor) Process(in, out protocol.Protocol) (bool, error) {
	p.mu.Lock()
	step := p.calls
	p.calls++
	p.mu.Unlock()
	if step >= len(p.script) {
		return false, nil
	}
	return p.script[step]()
}

func (p *scriptProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recordingHandler struct {
	mu           sync.Mutex
	begins, ends int
}

func (h *recordingHandler) PreServe() {}
func (h *recordingHandler) ConnBegin(in, out protocol.Protocol) {
	h.mu.Lock()
	h.begins++
	h.mu.Unlock()
}
func (h *recordingHandler) ConnEnd(in, out protocol.Protocol) {
	h.mu.Lock()
	h.ends++
	h.mu.Unlock()
}

func newTestTask(p Processor, inT, outT *fakeTransport, h EventHandler, log *zap.Logger) (*task, *registry) {
	r := newRegistry()
	tk := &task{
		id:        "test-conn",
		processor: p,
		in:        &fakeProtocol{t: inT},
		out:       &fakeProtocol{t: outT},
		registry:  r,
		handler:   h,
		log:       log,
	}
	r.register(tk)
	return tk, r
}

func TestTaskStopsAfterProcessorReportsDone(t *testing.T) {
	proc := &scriptProcessor{script: []func() (bool, error){
		func() (bool, error) { return false, nil },
	}}
	inT, outT := newFakeTransport(), newFakeTransport()
	h := &recordingHandler{}
	tk, r := newTestTask(proc, inT, outT, h, zap.NewNop())

	tk.run()

	if proc.callCount() != 1 {
		t.Fatalf("expected a single processor call, got %d", proc.callCount())
	}
	if inT.closeCount() != 1 || outT.closeCount() != 1 {
		t.Fatalf("expected both channels closed once, got in=%d out=%d", inT.closeCount(), outT.closeCount())
	}
	if r.size() != 0 {
		t.Fatal("task did not deregister")
	}
	if h.begins != 1 || h.ends != 1 {
		t.Fatalf("expected one begin and one end event, got %d/%d", h.begins, h.ends)
	}
}

func TestTaskContinuesWhileInputReady(t *testing.T) {
	inT, outT := newFakeTransport(), newFakeTransport()
	inT.peek = true
	proc := &scriptProcessor{script: []func() (bool, error){
		func() (bool, error) { return true, nil },
		func() (bool, error) { inT.mu.Lock(); inT.peek = false; inT.mu.Unlock(); return true, nil },
		func() (bool, error) { return true, nil },
	}}
	tk, _ := newTestTask(proc, inT, outT, nil, zap.NewNop())

	tk.run()

	// Third script step never runs: the second one drained readiness.
	if proc.callCount() != 2 {
		t.Fatalf("expected 2 processor calls, got %d", proc.callCount())
	}
}

func TestTaskExitsWhenNoDataImmediatelyAvailable(t *testing.T) {
	proc := &scriptProcessor{script: []func() (bool, error){
		func() (bool, error) { return true, nil },
	}}
	inT, outT := newFakeTransport(), newFakeTransport()
	tk, r := newTestTask(proc, inT, outT, nil, zap.NewNop())

	tk.run()

	if proc.callCount() != 1 {
		t.Fatalf("expected 1 processor call, got %d", proc.callCount())
	}
	if r.size() != 0 {
		t.Fatal("task did not deregister")
	}
}

func TestTaskTransportErrorClosesAndDeregisters(t *testing.T) {
	inT, outT := newFakeTransport(), newFakeTransport()
	inT.peek = true
	proc := &scriptProcessor{script: []func() (bool, error){
		func() (bool, error) { return true, nil },
		func() (bool, error) {
			return false, transport.NewError(transport.Unknown, errors.New("connection reset"))
		},
	}}
	core, logs := observer.New(zap.ErrorLevel)
	tk, r := newTestTask(proc, inT, outT, nil, zap.New(core))

	tk.run()

	if proc.callCount() != 2 {
		t.Fatalf("expected 2 processor calls, got %d", proc.callCount())
	}
	if inT.closeCount() != 1 || outT.closeCount() != 1 {
		t.Fatalf("channels not closed exactly once: in=%d out=%d", inT.closeCount(), outT.closeCount())
	}
	if r.size() != 0 {
		t.Fatal("task did not deregister after transport error")
	}
	if logs.FilterMessage("client died").Len() != 1 {
		t.Fatalf("expected one 'client died' log entry, got %d", logs.FilterMessage("client died").Len())
	}
}

func TestTaskInputCloseFailureStillClosesOutput(t *testing.T) {
	inT, outT := newFakeTransport(), newFakeTransport()
	inT.closeErr = errors.New("flush failed")
	proc := &scriptProcessor{}
	core, logs := observer.New(zap.ErrorLevel)
	tk, r := newTestTask(proc, inT, outT, nil, zap.New(core))

	tk.run()

	if outT.closeCount() != 1 {
		t.Fatal("output channel not closed after input close failure")
	}
	if r.size() != 0 {
		t.Fatal("task did not deregister after close failure")
	}
	if logs.FilterMessage("input transport close failed").Len() != 1 {
		t.Fatal("input close failure not logged")
	}
}

func TestTaskRecoversProcessorPanic(t *testing.T) {
	inT, outT := newFakeTransport(), newFakeTransport()
	proc := &scriptProcessor{script: []func() (bool, error){
		func() (bool, error) { panic("boom") },
	}}
	core, logs := observer.New(zap.ErrorLevel)
	tk, r := newTestTask(proc, inT, outT, nil, zap.New(core))

	tk.run()

	if inT.closeCount() != 1 || outT.closeCount() != 1 {
		t.Fatal("channels not closed after processor panic")
	}
	if r.size() != 0 {
		t.Fatal("task did not deregister after processor panic")
	}
	if logs.FilterMessage("processor panicked").Len() != 1 {
		t.Fatal("panic not logged")
	}
}

func TestTaskUnknownErrorLogsGenericLine(t *testing.T) {
	inT, outT := newFakeTransport(), newFakeTransport()
	proc := &scriptProcessor{script: []func() (bool, error){
		func() (bool, error) { return false, errors.New("something odd") },
	}}
	core, logs := observer.New(zap.ErrorLevel)
	tk, _ := newTestTask(proc, inT, outT, nil, zap.New(core))

	tk.run()

	if logs.FilterMessage("connection failed with unexpected error").Len() != 1 {
		t.Fatal("unknown error not logged with the generic line")
	}
}
