package runtime

import (
	"io"
	"log/slog"
	"testing"

	"chat-relay/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestRegistry(bufferSize int) *PresenceRegistry {
	// Silencing logs for clean test output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPresenceRegistry(logger, bufferSize)
}

func TestPresenceRegistry_OnlineIffConnectionSetNonEmpty(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := newTestRegistry(8)
	connA := mocks.NewMockConnection(ctrl)
	connB := mocks.NewMockConnection(ctrl)

	// Given an unknown user
	req.False(registry.IsOnline("alice"))
	req.Empty(registry.ConnectionsOf("alice"))

	// When two handles register for the same user
	registry.Register("alice", connA)
	registry.Register("alice", connB)

	// Then the user is online with both handles
	req.True(registry.IsOnline("alice"))
	req.Len(registry.ConnectionsOf("alice"), 2)

	// When one handle unregisters
	registry.Unregister(connA)

	// Then the user is still online through the remaining handle
	req.True(registry.IsOnline("alice"))
	req.Len(registry.ConnectionsOf("alice"), 1)

	// When the last handle unregisters
	registry.Unregister(connB)

	// Then the user is offline
	req.False(registry.IsOnline("alice"))
	req.Empty(registry.ConnectionsOf("alice"))
}

func TestPresenceRegistry_DuplicateRegisterIsNoOp(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := newTestRegistry(8)
	conn := mocks.NewMockConnection(ctrl)

	registry.Register("alice", conn)
	registry.Register("alice", conn)

	req.Len(registry.ConnectionsOf("alice"), 1)

	// A single unregister fully reverses the duplicate registration
	registry.Unregister(conn)
	req.False(registry.IsOnline("alice"))
}

func TestPresenceRegistry_UnknownUnregisterIsNoOp(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := newTestRegistry(8)
	conn := mocks.NewMockConnection(ctrl)

	// Double disconnect must not panic or disturb other users
	registry.Register("alice", conn)
	registry.Unregister(conn)
	registry.Unregister(conn)

	req.False(registry.IsOnline("alice"))
}

func TestPresenceRegistry_TransitionsOnlyOnEdges(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := newTestRegistry(8)
	connA := mocks.NewMockConnection(ctrl)
	connB := mocks.NewMockConnection(ctrl)

	// When two handles register and then both unregister
	registry.Register("alice", connA)
	registry.Register("alice", connB)
	registry.Unregister(connA)
	registry.Unregister(connB)

	// Then exactly one online and one offline transition were emitted
	online := <-registry.Transitions()
	req.Equal("alice", online.UserID)
	req.True(online.Online)

	offline := <-registry.Transitions()
	req.Equal("alice", offline.UserID)
	req.False(offline.Online)
	req.False(offline.At.IsZero())

	select {
	case tr := <-registry.Transitions():
		req.Failf("unexpected transition", "%+v", tr)
	default:
	}
}

func TestPresenceRegistry_ReconnectRaceKeepsTransitionOrder(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := newTestRegistry(64)

	drain := func() []Transition {
		var transitions []Transition
		for {
			select {
			case tr := <-registry.Transitions():
				transitions = append(transitions, tr)
			default:
				return transitions
			}
		}
	}

	// A disconnect racing a reconnect of the same user: whatever the
	// interleaving, the edges must come out of the channel in the order
	// they happened, so a consumer never ends on offline while a live
	// connection exists
	for i := 0; i < 200; i++ {
		oldConn := mocks.NewMockConnection(ctrl)
		newConn := mocks.NewMockConnection(ctrl)

		registry.Register("alice", oldConn)
		drain()

		done := make(chan struct{}, 2)
		go func() {
			registry.Unregister(oldConn)
			done <- struct{}{}
		}()
		go func() {
			registry.Register("alice", newConn)
			done <- struct{}{}
		}()
		<-done
		<-done

		req.True(registry.IsOnline("alice"))
		if transitions := drain(); len(transitions) > 0 {
			// Either no edge fired (register won the race) or the pair
			// fired offline-then-online, never inverted
			req.True(transitions[len(transitions)-1].Online)
		}

		registry.Unregister(newConn)
		drain()
	}
}

func TestPresenceRegistry_EmitNeverBlocks(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Given a registry whose transition channel has no reader and no room
	registry := newTestRegistry(0)
	conn := mocks.NewMockConnection(ctrl)

	// When a transition happens, Register must return anyway
	registry.Register("alice", conn)
	req.True(registry.IsOnline("alice"))
}

func TestPresenceRegistry_ConnectionsExcept(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := newTestRegistry(8)
	connAlice := mocks.NewMockConnection(ctrl)
	connBob := mocks.NewMockConnection(ctrl)

	registry.Register("alice", connAlice)
	registry.Register("bob", connBob)

	others := registry.ConnectionsExcept("alice")
	req.Len(others, 1)
	req.Same(connBob, others[0])
}
