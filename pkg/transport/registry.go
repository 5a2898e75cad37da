package transport

import "sync"

// Registry is the server's map from connection identifier to connection
// state. All four operations share one guard so a lookup never observes a
// connection mid-teardown.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Add registers a connection under its identifier. It fails with
// ErrDuplicateID if the identifier is already present.
func (r *Registry) Add(c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.id]; ok {
		return ErrDuplicateID
	}
	r.conns[c.id] = c
	return nil
}

// Remove deregisters and disposes the connection with the given identifier.
// Idempotent: removing an absent identifier is a no-op returning nil. The
// returned connection is non-nil only for the caller that actually removed
// it, which makes Remove the arbiter between racing teardown paths: the
// winner disposes and notifies, later callers see nil and stand down.
func (r *Registry) Remove(id string) *Conn {
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	c.Dispose()
	return c
}

// Lookup returns the connection registered under id, if any.
func (r *Registry) Lookup(id string) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	return c, ok
}

// Snapshot returns a point-in-time copy of the registered connections,
// safe to iterate while the registry mutates concurrently. No ordering is
// guaranteed.
func (r *Registry) Snapshot() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// clear removes and disposes every connection, returning the removed set.
func (r *Registry) clear() []*Conn {
	r.mu.Lock()
	out := make([]*Conn, 0, len(r.conns))
	for id, c := range r.conns {
		out = append(out, c)
		delete(r.conns, id)
	}
	r.mu.Unlock()

	for _, c := range out {
		c.Dispose()
	}
	return out
}
