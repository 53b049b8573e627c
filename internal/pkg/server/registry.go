package server

import "sync"

// registry tracks the set of live tasks. The serve loop registers a task
// before launching it and the task deregisters itself as its final act,
// so an empty registry means no worker is doing anything.
type registry struct {
	mu    sync.Mutex
	cond  *sync.Cond
	tasks map[*task]struct{}
}

func newRegistry() *registry {
	r := &registry{tasks: make(map[*task]struct{})}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *registry) register(t *task) {
	r.mu.Lock()
	r.tasks[t] = struct{}{}
	r.mu.Unlock()
}

// deregister removes t and wakes waiters when the set becomes empty.
func (r *registry) deregister(t *task) {
	r.mu.Lock()
	delete(r.tasks, t)
	if len(r.tasks) == 0 {
		r.cond.Broadcast()
	}
	r.mu.Unlock()
}

// waitUntilEmpty blocks until no task is registered. The emptiness check
// and the wait happen under one lock, so a deregistration between them
// cannot be lost.
func (r *registry) waitUntilEmpty() {
	r.mu.Lock()
	for len(r.tasks) > 0 {
		r.cond.Wait()
	}
	r.mu.Unlock()
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
