// Package runtime owns the ephemeral connection state of the system:
// presence, room subscriptions, sessions, fan-out and typing relay.
// Nothing in this package is durable; the repositories are the source of
// truth and the runtime only reduces delivery latency.
package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
)

// Transition is emitted by the registry when a user's connection set goes
// empty<->non-empty. Consumed by the PresenceWorker, never by connections
// directly.
type Transition struct {
	UserID string
	Online bool
	At     time.Time
}

// PresenceRegistry maps a user to the set of its live identified
// connections. A user is online iff the set is non-empty. Safe for
// concurrent use; operations are keyed per user, no cross-entry locking.
type PresenceRegistry struct {
	mu          sync.RWMutex
	byUser      map[string]map[contract.Connection]struct{}
	owner       map[contract.Connection]string
	transitions chan Transition
	log         *slog.Logger
}

func NewPresenceRegistry(log *slog.Logger, bufferSize int) *PresenceRegistry {
	return &PresenceRegistry{
		byUser:      make(map[string]map[contract.Connection]struct{}),
		owner:       make(map[contract.Connection]string),
		transitions: make(chan Transition, bufferSize),
		log:         log,
	}
}

// Transitions exposes the offline/online edge events for the worker.
func (r *PresenceRegistry) Transitions() <-chan Transition {
	return r.transitions
}

// Register adds conn to userID's connection set. Registering the same
// handle twice is a no-op; an existing handle is never evicted by a new
// registration, so multi-device and reconnect races all retain their
// connections.
func (r *PresenceRegistry) Register(userID string, conn contract.Connection) {
	r.mu.Lock()
	if _, dup := r.owner[conn]; dup {
		r.mu.Unlock()
		return
	}
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[contract.Connection]struct{})
		r.byUser[userID] = set
	}
	if len(set) == 0 {
		r.emit(Transition{UserID: userID, Online: true, At: time.Now().UTC()})
	}
	set[conn] = struct{}{}
	r.owner[conn] = userID
	r.mu.Unlock()
}

// Unregister removes conn from its user's set. Unknown handles are a
// no-op (double disconnect). Removing the last handle records the
// offline transition with a lastSeen timestamp.
func (r *PresenceRegistry) Unregister(conn contract.Connection) {
	r.mu.Lock()
	userID, ok := r.owner[conn]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.owner, conn)
	set := r.byUser[userID]
	delete(set, conn)
	if len(set) == 0 {
		delete(r.byUser, userID)
		r.emit(Transition{UserID: userID, Online: false, At: time.Now().UTC()})
	}
	r.mu.Unlock()
}

func (r *PresenceRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// ConnectionsOf returns the live connections of userID. An empty result
// is a normal presence miss, not a failure.
func (r *PresenceRegistry) ConnectionsOf(userID string) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[userID]
	conns := make([]contract.Connection, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// ConnectionsExcept returns every identified connection not belonging to
// userID. Used by the presence worker to broadcast online/offline events
// to the rest of the system.
func (r *PresenceRegistry) ConnectionsExcept(userID string) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var conns []contract.Connection
	for uid, set := range r.byUser {
		if uid == userID {
			continue
		}
		for conn := range set {
			conns = append(conns, conn)
		}
	}
	return conns
}

// emit runs under r.mu so transitions leave the channel in the same
// order the edges happened: a reconnect racing a disconnect can never
// publish its online edge before the offline edge it supersedes. It
// never blocks a registry caller: a full transitions channel drops the
// edge and logs it. The durable store is reconciled by the next
// transition for that user.
func (r *PresenceRegistry) emit(tr Transition) {
	select {
	case r.transitions <- tr:
	default:
		r.log.Warn(fmt.Sprintf("Presence transition channel full, dropping transition for %s", tr.UserID))
	}
}
