package runtime

import (
	"sync"

	"chat-relay/contract"
)

// RoomMembership tracks which connections joined which rooms for the
// current session. Ephemeral by design: it only routes typing signals,
// message fan-out relies on presence plus the durable participant list.
type RoomMembership struct {
	mu     sync.RWMutex
	byRoom map[string]map[contract.Connection]struct{}
	byConn map[contract.Connection]map[string]struct{}
}

func NewRoomMembership() *RoomMembership {
	return &RoomMembership{
		byRoom: make(map[string]map[contract.Connection]struct{}),
		byConn: make(map[contract.Connection]map[string]struct{}),
	}
}

// Join is idempotent. Identification is enforced by the session, not here.
func (m *RoomMembership) Join(conn contract.Connection, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byRoom[roomID]; !ok {
		m.byRoom[roomID] = make(map[contract.Connection]struct{})
	}
	m.byRoom[roomID][conn] = struct{}{}

	if _, ok := m.byConn[conn]; !ok {
		m.byConn[conn] = make(map[string]struct{})
	}
	m.byConn[conn][roomID] = struct{}{}
}

func (m *RoomMembership) Leave(conn contract.Connection, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(conn, roomID)
}

// Drop removes the connection from every room it joined. Called once on
// disconnect; must be idempotent.
func (m *RoomMembership) Drop(conn contract.Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for roomID := range m.byConn[conn] {
		m.leaveLocked(conn, roomID)
	}
}

func (m *RoomMembership) leaveLocked(conn contract.Connection, roomID string) {
	if members, ok := m.byRoom[roomID]; ok {
		delete(members, conn)
		// No empty sets left behind to avoid leaking room entries over time
		if len(members) == 0 {
			delete(m.byRoom, roomID)
		}
	}
	if rooms, ok := m.byConn[conn]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(m.byConn, conn)
		}
	}
}

// SubscribersOf returns the connections currently joined to roomID.
func (m *RoomMembership) SubscribersOf(roomID string) []contract.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := m.byRoom[roomID]
	conns := make([]contract.Connection, 0, len(members))
	for conn := range members {
		conns = append(conns, conn)
	}
	return conns
}
