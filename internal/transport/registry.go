package transport

import (
	"sort"
	"sync"

	ws "nhooyr.io/websocket"
)

// Registry keeps at most one client connection per session.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Conn
}

func NewRegistry() *Registry { return &Registry{conns: make(map[string]*Conn)} }

// Replace sets the connection for a session and closes the previous one if present.
func (r *Registry) Replace(sessionID string, c *Conn) (prevClosed bool) {
	r.mu.Lock()
	old, ok := r.conns[sessionID]
	r.conns[sessionID] = c
	r.mu.Unlock()
	if ok && old != nil && old != c {
		old.Close(ws.StatusPolicyViolation, "replaced")
		prevClosed = true
	}
	return
}

func (r *Registry) Get(sessionID string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[sessionID]
}

// Remove drops the entry only while it still points at c, so a replaced
// handler cannot unregister its successor.
func (r *Registry) Remove(sessionID string, c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[sessionID] == c {
		delete(r.conns, sessionID)
	}
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CloseAll closes every live connection; used on shutdown.
func (r *Registry) CloseAll(reason string) int {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()
	for _, c := range conns {
		c.Close(ws.StatusGoingAway, reason)
	}
	return len(conns)
}
