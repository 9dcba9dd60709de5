package runtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testMessage(senderID string) domain.Message {
	return domain.Message{
		ID:             uuid.New(),
		ConversationID: uuid.NewString(),
		SenderID:       senderID,
		Content:        "hello",
		CreatedAt:      time.Now().UTC(),
	}
}

func newTestFanout(registry *PresenceRegistry) *Fanout {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFanout(logger, registry, observability.NopCollector{}, time.Second)
}

func TestFanout_DeliversToEveryoneButTheSender(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := newTestRegistry(8)
	connAlice := mocks.NewMockConnection(ctrl)
	connBob := mocks.NewMockConnection(ctrl)
	registry.Register("alice", connAlice)
	registry.Register("bob", connBob)

	message := testMessage("alice")

	// Then bob receives the committed message exactly once, alice never
	connBob.EXPECT().
		Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
			received, ok := e.(event.MessageReceived)
			req.True(ok)
			req.Equal(message.ID, received.Message.ID)
			req.Equal(message.Content, received.Message.Content)
			return nil
		}).Times(1)

	newTestFanout(registry).Deliver(context.Background(), message, []string{"alice", "bob"})
}

func TestFanout_PresenceMissIsNotAFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := newTestRegistry(8)
	connAlice := mocks.NewMockConnection(ctrl)
	registry.Register("alice", connAlice)

	// Bob is offline: nothing is pushed anywhere, nothing blows up.
	// He will read the message from the store on next fetch.
	newTestFanout(registry).Deliver(context.Background(), testMessage("alice"), []string{"alice", "bob"})
}

func TestFanout_OnePushPerLiveHandle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := newTestRegistry(8)
	connAlice := mocks.NewMockConnection(ctrl)
	phone := mocks.NewMockConnection(ctrl)
	laptop := mocks.NewMockConnection(ctrl)
	registry.Register("alice", connAlice)
	registry.Register("bob", phone)
	registry.Register("bob", laptop)

	// Bob is connected twice, so both devices get one push each
	phone.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	laptop.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	newTestFanout(registry).Deliver(context.Background(), testMessage("alice"), []string{"alice", "bob"})
}

// countingCollector records push outcomes so tests can tell a delivered
// push from a dropped or failed one.
type countingCollector struct {
	observability.NopCollector
	delivered int
	dropped   int
	failed    int
}

func (c *countingCollector) RecordPushDelivered() { c.delivered++ }
func (c *countingCollector) RecordPushDropped()   { c.dropped++ }
func (c *countingCollector) RecordPushFailed()    { c.failed++ }

func TestFanout_FullSinkCountsAsDroppedNotDelivered(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := newTestRegistry(8)
	slow := mocks.NewMockConnection(ctrl)
	fast := mocks.NewMockConnection(ctrl)
	registry.Register("bob", slow)
	registry.Register("carol", fast)

	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(errors.ErrSinkFull).Times(1)
	slow.EXPECT().ID().Return(uuid.New()).AnyTimes()
	fast.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := &countingCollector{}
	fanout := NewFanout(logger, registry, metrics, time.Second)
	fanout.Deliver(context.Background(), testMessage("alice"), []string{"alice", "bob", "carol"})

	req.Equal(1, metrics.delivered)
	req.Equal(1, metrics.dropped)
	req.Equal(0, metrics.failed)
}

func TestFanout_DeadConnectionDoesNotAffectOthers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := newTestRegistry(8)
	dead := mocks.NewMockConnection(ctrl)
	alive := mocks.NewMockConnection(ctrl)
	registry.Register("bob", dead)
	registry.Register("carol", alive)

	dead.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded).Times(1)
	dead.EXPECT().ID().Return(uuid.New()).AnyTimes()
	alive.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	// Deliver never surfaces the failed push to its caller
	newTestFanout(registry).Deliver(context.Background(), testMessage("alice"), []string{"alice", "bob", "carol"})
}
