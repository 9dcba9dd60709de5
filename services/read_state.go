package services

import (
	"context"
	"log/slog"

	"chat-relay/contract"
)

// ReadStateTracker reconciles per-user read state over a conversation's
// messages. It owns no state of its own: the message store is
// authoritative and every count is computed fresh.
type ReadStateTracker struct {
	messages contract.MessageStore
	log      *slog.Logger
}

func NewReadStateTracker(log *slog.Logger, messages contract.MessageStore) *ReadStateTracker {
	return &ReadStateTracker{messages: messages, log: log}
}

// MarkRead acknowledges every message of the conversation not sent by
// userID and not yet read by them, atomically in the store.
func (t *ReadStateTracker) MarkRead(ctx context.Context, userID, conversationID string) error {
	updated, err := t.messages.MarkRead(userID, conversationID)
	if err != nil {
		return err
	}
	if updated > 0 {
		t.log.Debug("Marked messages as read",
			"user_id", userID,
			"conversation_id", conversationID,
			"count", updated)
	}
	return nil
}

// Unread returns the unread count for (userID, conversationID). The
// activeConversationID hint is client supplied: the conversation
// currently open always reports zero, regardless of stored read state,
// to suppress badge flicker while the client catches up.
func (t *ReadStateTracker) Unread(ctx context.Context, userID, conversationID, activeConversationID string) (int, error) {
	if activeConversationID != "" && conversationID == activeConversationID {
		return 0, nil
	}
	return t.messages.CountUnread(userID, conversationID)
}
