package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
)

// Fanout pushes committed messages to the live connections of a
// conversation's participants.
//
// Push-best-effort, pull-authoritative: Deliver is invoked only after the
// store committed the message, so a failed or missed push never loses
// data. No retry, no queueing for offline recipients, one push per live
// handle per call (two devices receive two pushes).
type Fanout struct {
	presence    contract.IPresence
	log         *slog.Logger
	metrics     observability.MetricsCollector
	sinkTimeout time.Duration
}

func NewFanout(log *slog.Logger, presence contract.IPresence,
	metrics observability.MetricsCollector, sinkTimeout time.Duration) *Fanout {
	return &Fanout{presence: presence, log: log, metrics: metrics, sinkTimeout: sinkTimeout}
}

// Deliver resolves each participant's connections and pushes the message
// to everyone except the sender. Send failures are logged and swallowed:
// nothing here may surface to the caller that triggered the send, and a
// dead connection must not affect anyone else's delivery.
func (f *Fanout) Deliver(ctx context.Context, message domain.Message, participantIDs []string) {
	evt := event.MessageReceived{Message: message}

	for _, participantID := range participantIDs {
		if participantID == message.SenderID {
			continue
		}

		conns := f.presence.ConnectionsOf(participantID)
		if len(conns) == 0 {
			// Not an error: the recipient will see the message on next fetch
			f.metrics.RecordPresenceMiss()
			continue
		}

		for _, conn := range conns {
			pushCtx, cancel := context.WithTimeout(ctx, f.sinkTimeout)
			err := conn.Consume(pushCtx, evt)
			cancel()
			switch {
			case err == errors.ErrSinkFull:
				f.metrics.RecordPushDropped()
				f.log.Debug("Connection buffer full, push dropped",
					"message_id", message.ID,
					"user_id", participantID,
					"connection_id", conn.ID())
			case err != nil:
				f.metrics.RecordPushFailed()
				f.log.Warn("Failed to push message to connection",
					"message_id", message.ID,
					"user_id", participantID,
					"connection_id", conn.ID(),
					"error", err)
			default:
				f.metrics.RecordPushDelivered()
			}
		}
	}
}
