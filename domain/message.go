// Package domain contains core concepts of the chat system.
// This file defines Message entities and read-state rules.
// Messages are immutable once persisted; only ReadBy grows.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a durable chat message.
// ReadBy holds the IDs of users that acknowledged the message.
// The sender never needs to appear in ReadBy.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	ReadBy         []string  `json:"readBy"`
}

// UnreadBy reports whether the message counts as unread for userID.
// A message is unread iff the user is not the sender and has not
// acknowledged it.
func (m Message) UnreadBy(userID string) bool {
	if m.SenderID == userID {
		return false
	}
	for _, id := range m.ReadBy {
		if id == userID {
			return false
		}
	}
	return true
}
