package runtime

import (
	"context"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

type SessionState int

const (
	StateAnonymous SessionState = iota
	StateIdentified
	StateClosed
)

// Session is the lifecycle wrapper around one live connection:
// Anonymous -> (Identify) -> Identified -> (Close) -> Closed, terminal.
// A handle binds to at most one user for its whole lifetime and is never
// reused after Close.
type Session struct {
	mu     sync.Mutex
	state  SessionState
	userID string

	conn     contract.Connection
	presence contract.IPresence
	rooms    contract.IRooms
	typing   *TypingRelay
}

func NewSession(conn contract.Connection, presence contract.IPresence,
	rooms contract.IRooms, typing *TypingRelay) *Session {
	return &Session{
		conn:     conn,
		presence: presence,
		rooms:    rooms,
		typing:   typing,
	}
}

// Identify binds the connection to userID, registers presence and pushes
// the connected acknowledgment. A second handshake with the same user is
// a harmless re-registration; with a different user it is rejected.
// Identify after Close never leaks a registration.
func (s *Session) Identify(ctx context.Context, userID string) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return errors.ErrSessionClosed
	case StateIdentified:
		if s.userID != userID {
			s.mu.Unlock()
			return errors.ErrAlreadyIdentified
		}
	default:
		s.userID = userID
		s.state = StateIdentified
	}
	// Registered under the session lock so a concurrent Close cannot run
	// between the state change and the registration and leak a handle.
	s.presence.Register(userID, s.conn)
	s.mu.Unlock()

	// Ack failures are a transport concern; identification already took
	// effect and teardown will reconcile.
	_ = s.conn.Consume(ctx, event.Connected{UserID: userID})
	return nil
}

func (s *Session) Join(roomID string) error {
	if err := s.requireIdentified(); err != nil {
		return err
	}
	s.rooms.Join(s.conn, roomID)
	return nil
}

func (s *Session) Leave(roomID string) error {
	if err := s.requireIdentified(); err != nil {
		return err
	}
	s.rooms.Leave(s.conn, roomID)
	return nil
}

func (s *Session) TypingStart(ctx context.Context, roomID string) error {
	userID, err := s.identifiedUser()
	if err != nil {
		return err
	}
	s.typing.TypingStart(ctx, s.conn, userID, roomID)
	return nil
}

func (s *Session) TypingStop(ctx context.Context, roomID string) error {
	userID, err := s.identifiedUser()
	if err != nil {
		return err
	}
	s.typing.TypingStop(ctx, s.conn, userID, roomID)
	return nil
}

// Close tears the session down from any state: every joined room is left
// and, if identified, presence is unregistered. Idempotent and race-safe
// against a concurrent Identify.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	wasIdentified := s.state == StateIdentified
	s.state = StateClosed
	s.rooms.Drop(s.conn)
	if wasIdentified {
		s.presence.Unregister(s.conn)
	}
	s.mu.Unlock()
}

// UserID returns the bound user, empty while anonymous.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) requireIdentified() error {
	_, err := s.identifiedUser()
	return err
}

func (s *Session) identifiedUser() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return "", errors.ErrSessionClosed
	case StateAnonymous:
		return "", errors.ErrNotIdentified
	default:
		return s.userID, nil
	}
}
