package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

// TypingRelay broadcasts start/stop typing signals to a room's current
// subscribers, sender excluded. Stateless: no persistence, no delivery
// guarantee, no acknowledgment. Debounce is a client concern.
type TypingRelay struct {
	rooms       contract.IRooms
	log         *slog.Logger
	metrics     observability.MetricsCollector
	sinkTimeout time.Duration
}

func NewTypingRelay(log *slog.Logger, rooms contract.IRooms,
	metrics observability.MetricsCollector, sinkTimeout time.Duration) *TypingRelay {
	return &TypingRelay{rooms: rooms, log: log, metrics: metrics, sinkTimeout: sinkTimeout}
}

func (t *TypingRelay) TypingStart(ctx context.Context, from contract.Connection, userID, roomID string) {
	t.broadcast(ctx, from, roomID, event.Typing{RoomID: roomID, UserID: userID})
}

func (t *TypingRelay) TypingStop(ctx context.Context, from contract.Connection, userID, roomID string) {
	t.broadcast(ctx, from, roomID, event.StopTyping{RoomID: roomID, UserID: userID})
}

func (t *TypingRelay) broadcast(ctx context.Context, from contract.Connection, roomID string, evt event.DomainEvent) {
	for _, conn := range t.rooms.SubscribersOf(roomID) {
		if conn == from {
			continue
		}
		pushCtx, cancel := context.WithTimeout(ctx, t.sinkTimeout)
		err := conn.Consume(pushCtx, evt)
		cancel()
		if err != nil {
			t.log.Debug("Typing signal lost",
				"room_id", roomID,
				"connection_id", conn.ID(),
				"error", err)
			continue
		}
		t.metrics.RecordTypingSignal()
	}
}
