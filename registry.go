package moonlapse

import (
	"sort"
	"sync"
)

// Registry is the set of live connections, keyed by connection ID.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint64]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint64]*Connection)}
}

// Add registers c.
func (r *Registry) Add(c *Connection) {
	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()
}

// Remove drops the connection with the given ID, if present.
func (r *Registry) Remove(id uint64) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

// Get looks up a connection by ID.
func (r *Registry) Get(id uint64) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Snapshot returns the live connections ordered by ID.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].id < conns[j].id })
	return conns
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
