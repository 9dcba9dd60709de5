package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

// PresenceWorker consumes registry transitions, persists the online flag
// and lastSeen through the user store, and broadcasts the matching
// user_online / user_offline event to every other identified connection.
// The registry never talks to connections directly; this worker is the
// only bridge.
type PresenceWorker struct {
	log         *slog.Logger
	transitions <-chan Transition
	registry    *PresenceRegistry
	users       contract.UserStore
	metrics     observability.MetricsCollector
	sinkTimeout time.Duration
}

func NewPresenceWorker(log *slog.Logger, registry *PresenceRegistry,
	users contract.UserStore, metrics observability.MetricsCollector,
	sinkTimeout time.Duration) *PresenceWorker {
	return &PresenceWorker{
		log:         log,
		transitions: registry.Transitions(),
		registry:    registry,
		users:       users,
		metrics:     metrics,
		sinkTimeout: sinkTimeout,
	}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping presence worker")
			return ctx.Err()
		case tr := <-w.transitions:
			w.handle(ctx, tr)
		}
	}
}

func (w *PresenceWorker) handle(ctx context.Context, tr Transition) {
	if err := w.users.SetOnlineStatus(tr.UserID, tr.Online, tr.At); err != nil {
		w.log.Error("Failed to persist online status",
			"user_id", tr.UserID,
			"online", tr.Online,
			"error", err)
	}

	var evt event.DomainEvent
	if tr.Online {
		w.metrics.RecordUserOnline()
		evt = event.UserOnline{UserID: tr.UserID, At: tr.At}
	} else {
		w.metrics.RecordUserOffline()
		evt = event.UserOffline{UserID: tr.UserID, LastSeen: tr.At}
	}

	for _, conn := range w.registry.ConnectionsExcept(tr.UserID) {
		pushCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		err := conn.Consume(pushCtx, evt)
		cancel()
		if err != nil {
			w.log.Debug("Presence event lost",
				"user_id", tr.UserID,
				"connection_id", conn.ID(),
				"error", err)
		}
	}
}
