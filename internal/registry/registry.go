// Package registry tracks which users are reachable over which live
// connections. It is the in-process state of record for presence: a user is
// online iff at least one registered session references them.
package registry

import (
	"errors"
	"sync"
)

var ErrSessionNotFound = errors.New("session not found")

// Conn is one live push channel. Enqueue must not block: implementations
// return an error on a closed connection or a full send buffer.
type Conn interface {
	Enqueue(data []byte) error
	Close() error
}

// TransitionFunc is invoked when a user's first session appears (online=true)
// or their last session disappears (online=false). It runs while the registry
// lock is held so that transitions are observed in the order they happen;
// implementations must only hand the transition off, never block or call back
// into the registry.
type TransitionFunc func(userID string, online bool)

// Target pairs a live session with its connection for fan-out.
type Target struct {
	SessionID string
	UserID    string
	Conn      Conn
}

// Registry maps session ids to connections and users. All operations are
// internally synchronized.
type Registry struct {
	mu           sync.RWMutex
	conns        map[string]Conn                // sessionID -> conn
	users        map[string]string              // sessionID -> userID
	sessions     map[string]map[string]struct{} // userID -> set of sessionIDs
	onTransition TransitionFunc
}

// New creates an empty registry. onTransition may be nil.
func New(onTransition TransitionFunc) *Registry {
	return &Registry{
		conns:        make(map[string]Conn),
		users:        make(map[string]string),
		sessions:     make(map[string]map[string]struct{}),
		onTransition: onTransition,
	}
}

// Register inserts or replaces the session entry. Registering an existing
// session id replaces its connection; duplicate user ids are legal
// (multi-device). The previous connection, if any, is closed.
func (r *Registry) Register(sessionID, userID string, conn Conn) {
	var replaced Conn

	r.mu.Lock()
	if prev, ok := r.conns[sessionID]; ok && prev != conn {
		replaced = prev
	}
	if prevUser, ok := r.users[sessionID]; ok && prevUser != userID {
		r.detachLocked(sessionID, prevUser)
	}

	r.conns[sessionID] = conn
	r.users[sessionID] = userID
	set, ok := r.sessions[userID]
	if !ok {
		set = make(map[string]struct{})
		r.sessions[userID] = set
		if r.onTransition != nil {
			r.onTransition(userID, true)
		}
	}
	set[sessionID] = struct{}{}
	r.mu.Unlock()

	if replaced != nil {
		replaced.Close()
	}
}

// Unregister removes the session entry and closes its connection. No-op if
// the session is absent, so concurrent close and error paths may both call it.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	conn, ok := r.conns[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, sessionID)
	userID := r.users[sessionID]
	delete(r.users, sessionID)
	r.detachLocked(sessionID, userID)
	r.mu.Unlock()

	conn.Close()
}

// detachLocked removes a session from a user's set and fires the offline
// transition when the set empties. Caller holds r.mu.
func (r *Registry) detachLocked(sessionID, userID string) {
	set, ok := r.sessions[userID]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.sessions, userID)
		if r.onTransition != nil {
			r.onTransition(userID, false)
		}
	}
}

// SessionsForUser returns the live session ids for a user; may be empty.
func (r *Registry) SessionsForUser(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.sessions[userID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// ConnFor returns the live connection for a session id.
func (r *Registry) ConnFor(sessionID string) (Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return conn, nil
}

// UserFor returns the user id a session is bound to.
func (r *Registry) UserFor(sessionID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.users[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	return userID, nil
}

// TargetsForUsers returns every live session of the given users in one
// consistent snapshot, so a broadcast never observes a session mid-removal.
func (r *Registry) TargetsForUsers(userIDs []string) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var targets []Target
	for _, userID := range userIDs {
		for sessionID := range r.sessions[userID] {
			if conn, ok := r.conns[sessionID]; ok {
				targets = append(targets, Target{
					SessionID: sessionID,
					UserID:    userID,
					Conn:      conn,
				})
			}
		}
	}
	return targets
}

// SessionCount returns the number of registered sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
