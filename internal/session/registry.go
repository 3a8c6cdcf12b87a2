// Package session tracks the set of datagram peers subscribed to the video
// broadcast. The registry is the only state shared between the streamer's
// control-plane and broadcast goroutines, so every operation holds the one
// mutex and iteration always happens over a snapshot copy.
package session

import (
	"net"
	"sync"
	"time"
)

// Session is one registered viewer endpoint.
type Session struct {
	Addr        *net.UDPAddr
	ConnectedAt time.Time
	LastSeen    time.Time
}

// Registry is a mutex-guarded set of sessions keyed by address.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Add registers a peer, or refreshes it if already present.
func (r *Registry) Add(addr *net.UDPAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := addr.String()
	if s, ok := r.sessions[key]; ok {
		s.LastSeen = r.now()
		return
	}

	now := r.now()
	r.sessions[key] = &Session{Addr: addr, ConnectedAt: now, LastSeen: now}
}

// Remove unregisters a peer. Returns true if it was present.
func (r *Registry) Remove(addr *net.UDPAddr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := addr.String()
	_, ok := r.sessions[key]
	delete(r.sessions, key)
	return ok
}

// Touch refreshes a peer's last-seen time. Any datagram from a registered
// address counts as activity. Returns false for unknown peers.
func (r *Registry) Touch(addr *net.UDPAddr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[addr.String()]
	if ok {
		s.LastSeen = r.now()
	}
	return ok
}

// Snapshot returns a copy of the current peer addresses. The copy is safe to
// iterate while the control plane mutates the registry concurrently. No
// traversal order is guaranteed.
func (r *Registry) Snapshot() []*net.UDPAddr {
	r.mu.Lock()
	defer r.mu.Unlock()

	addrs := make([]*net.UDPAddr, 0, len(r.sessions))
	for _, s := range r.sessions {
		addrs = append(addrs, s.Addr)
	}
	return addrs
}

// Count returns the number of registered peers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Clear drops every session, returning the addresses that were registered.
// Used at shutdown so the streamer can notify each peer once.
func (r *Registry) Clear() []*net.UDPAddr {
	r.mu.Lock()
	defer r.mu.Unlock()

	addrs := make([]*net.UDPAddr, 0, len(r.sessions))
	for _, s := range r.sessions {
		addrs = append(addrs, s.Addr)
	}
	r.sessions = make(map[string]*Session)
	return addrs
}

// Expire removes every session idle longer than timeout and returns the
// evicted addresses. A timeout of zero disables eviction.
func (r *Registry) Expire(timeout time.Duration) []*net.UDPAddr {
	if timeout <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-timeout)
	var evicted []*net.UDPAddr
	for key, s := range r.sessions {
		if s.LastSeen.Before(cutoff) {
			evicted = append(evicted, s.Addr)
			delete(r.sessions, key)
		}
	}
	return evicted
}
