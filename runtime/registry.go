// Package runtime owns the live state of the relay: the session registry
// and the broadcast engine. It orchestrates delivery without containing
// wire-level or presentation logic.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Ensure *Registry implements the contract.IRegistry interface at compile time.
// This prevents "type mismatch" errors from appearing late in other packages
// and acts as a static assertion of our architectural rules.
var _ contract.IRegistry = (*Registry)(nil)

type SessionState int

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosing
)

// Session is the server-side representation of one connected, logged-in client.
// It is owned exclusively by the Registry once registered; identity fields are
// never mutated after the session becomes active.
type Session struct {
	ID    uuid.UUID
	Name  string
	State SessionState
	Sink  contract.MessageSink

	// seq fixes the iteration order of snapshots so one broadcast call
	// always fans out in the same order.
	seq uint64
}

// Registry is the authoritative set of currently active sessions.
// All mutations and snapshots run under a single mutex; the lock is never
// held across an I/O call.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	names    map[string]uuid.UUID
	nextSeq  uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		names:    make(map[string]uuid.UUID),
	}
}

// Register creates a session for the given display name and outbound sink.
// The uniqueness check and the insertion are one atomic step: two simultaneous
// logins claiming the same name can never both succeed.
func (r *Registry) Register(name string, sink contract.MessageSink) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.names[name]; taken {
		return uuid.Nil, fmt.Errorf("%w: %q", errors.ErrNameTaken, name)
	}

	s := &Session{
		ID:    uuid.New(),
		Name:  name,
		State: StateActive,
		Sink:  sink,
		seq:   r.nextSeq,
	}
	r.nextSeq++
	r.sessions[s.ID] = s
	r.names[name] = s.ID
	return s.ID, nil
}

// Unregister removes the session if present and reports whether it was.
// Removing an absent session is a no-op, which makes the call safe under
// racing disconnect triggers (read error firing together with an explicit
// quit). The display name is released in the same critical section, so a
// new login may reuse it immediately afterwards.
func (r *Registry) Unregister(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.State = StateClosing
	delete(r.sessions, id)
	delete(r.names, s.Name)
	return true
}

// SnapshotOthers returns a consistent point-in-time view of every session
// except the excluded one, ordered by registration sequence. Registrations
// and removals happening after the snapshot do not affect an in-flight
// broadcast iterating over it.
func (r *Registry) SnapshotOthers(exclude uuid.UUID) []contract.Peer {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id == exclude {
			continue
		}
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].seq < targets[j].seq })
	return lo.Map(targets, func(s *Session, _ int) contract.Peer {
		return contract.Peer{ID: s.ID, Name: s.Name, Sink: s.Sink}
	})
}

func (r *Registry) Lookup(id uuid.UUID) (contract.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return contract.Peer{}, false
	}
	return contract.Peer{ID: s.ID, Name: s.Name, Sink: s.Sink}, true
}

// Names returns the sorted display names of all active sessions (the roster).
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := lo.Keys(r.names)
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
