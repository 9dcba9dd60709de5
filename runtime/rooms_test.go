package runtime

import (
	"testing"

	"chat-relay/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRoomMembership_JoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rooms := NewRoomMembership()
	conn := mocks.NewMockConnection(ctrl)

	rooms.Join(conn, "room-1")
	rooms.Join(conn, "room-1")

	req.Len(rooms.SubscribersOf("room-1"), 1)
}

func TestRoomMembership_LeaveRemovesOnlyThatRoom(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rooms := NewRoomMembership()
	conn := mocks.NewMockConnection(ctrl)

	rooms.Join(conn, "room-1")
	rooms.Join(conn, "room-2")

	rooms.Leave(conn, "room-1")

	req.Empty(rooms.SubscribersOf("room-1"))
	req.Len(rooms.SubscribersOf("room-2"), 1)

	// Leaving a room never joined is a no-op
	rooms.Leave(conn, "room-3")
	req.Len(rooms.SubscribersOf("room-2"), 1)
}

func TestRoomMembership_DropRemovesFromEveryRoom(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rooms := NewRoomMembership()
	leaving := mocks.NewMockConnection(ctrl)
	staying := mocks.NewMockConnection(ctrl)

	rooms.Join(leaving, "room-1")
	rooms.Join(leaving, "room-2")
	rooms.Join(staying, "room-1")

	rooms.Drop(leaving)

	// Then only the dropped connection disappeared
	subscribers := rooms.SubscribersOf("room-1")
	req.Len(subscribers, 1)
	req.Same(staying, subscribers[0])
	req.Empty(rooms.SubscribersOf("room-2"))

	// Drop is idempotent
	rooms.Drop(leaving)
	req.Len(rooms.SubscribersOf("room-1"), 1)
}
