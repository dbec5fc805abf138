// Package runtime holds the shared mutable state of the coordinator: the
// presence registry, the room membership tracker and the broadcast
// dispatcher. Nothing else in the module has write access to these maps.
package runtime

import (
	"sync"
	"time"

	"chat-hub/contract"
	"chat-hub/domain"
)

type session struct {
	conn domain.Connection
	sink contract.EventSink
}

type presenceEntry struct {
	identity domain.Identity
	conns    map[domain.ConnectionID]struct{}
}

// Registry maps live connections to identities and identities to their set
// of live connections. An identity is online iff its set is non-empty; the
// key is removed the moment the set empties, so absence means offline.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnectionID]*session
	entries  map[domain.IdentityID]*presenceEntry
}

var _ contract.Presence = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ConnectionID]*session),
		entries:  make(map[domain.IdentityID]*presenceEntry),
	}
}

// Register records an authenticated connection under its identity.
// It reports whether this was the identity's zero-to-one transition; only
// that transition warrants an online broadcast, intermediate connects for
// an already-online identity are silent.
func (r *Registry) Register(connID domain.ConnectionID, identity domain.Identity, sink contract.EventSink) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[connID] = &session{
		conn: domain.Connection{ID: connID, Identity: identity, CreatedAt: time.Now()},
		sink: sink,
	}

	entry, ok := r.entries[identity.ID]
	if !ok {
		entry = &presenceEntry{identity: identity, conns: make(map[domain.ConnectionID]struct{})}
		r.entries[identity.ID] = entry
	}
	entry.conns[connID] = struct{}{}
	return !ok
}

// Deregister removes a connection. Unknown connections are a successful
// no-op since disconnects race with cleanup. It reports the owning identity
// and whether this was the one-to-zero transition.
func (r *Registry) Deregister(connID domain.ConnectionID) (identity domain.Identity, last bool, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return domain.Identity{}, false, false
	}
	delete(r.sessions, connID)

	entry, ok := r.entries[sess.conn.Identity.ID]
	if ok {
		delete(entry.conns, connID)
		if len(entry.conns) == 0 {
			delete(r.entries, sess.conn.Identity.ID)
			return sess.conn.Identity, true, true
		}
	}
	return sess.conn.Identity, false, true
}

func (r *Registry) IsOnline(id domain.IdentityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) SessionCount(id domain.IdentityID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return 0
	}
	return len(entry.conns)
}

// IdentityOf resolves the identity owning a live connection.
func (r *Registry) IdentityOf(connID domain.ConnectionID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connID]
	if !ok {
		return domain.Identity{}, false
	}
	return sess.conn.Identity, true
}

// Identity resolves an online identity by id.
func (r *Registry) Identity(id domain.IdentityID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return domain.Identity{}, false
	}
	return entry.identity, true
}

// Sink resolves the sink of a single live connection, for replies that
// target the requesting connection rather than an identity or a room.
func (r *Registry) Sink(connID domain.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connID]
	if !ok {
		return nil, false
	}
	return sess.sink, true
}

// SinksForIdentity snapshots the sinks of every live connection of an
// identity. Empty when offline; personal delivery is then a no-op.
func (r *Registry) SinksForIdentity(id domain.IdentityID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sinksLocked(id)
}

// SinksForIdentities resolves sinks for a set of identities in one pass,
// under a single read lock. Offline identities contribute nothing.
func (r *Registry) SinksForIdentities(ids []domain.IdentityID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sinks []contract.EventSink
	for _, id := range ids {
		sinks = append(sinks, r.sinksLocked(id)...)
	}
	return sinks
}

// AllSinks snapshots every live connection's sink, for global topics.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sinks = append(sinks, sess.sink)
	}
	return sinks
}

func (r *Registry) sinksLocked(id domain.IdentityID) []contract.EventSink {
	entry, ok := r.entries[id]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(entry.conns))
	for connID := range entry.conns {
		if sess, exists := r.sessions[connID]; exists {
			sinks = append(sinks, sess.sink)
		}
	}
	return sinks
}
