package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a durable set of participants sharing messages.
// "Room" in the runtime packages refers to the ephemeral subscription
// concept keyed by a Conversation ID; membership here is authoritative.
type Conversation struct {
	ID              string     `json:"id"`
	Name            string     `json:"name,omitempty"`
	IsGroup         bool       `json:"isGroup"`
	ParticipantIDs  []string   `json:"participantIds"`
	AdminID         string     `json:"adminId,omitempty"`
	LatestMessageID *uuid.UUID `json:"latestMessageId,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (c Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}
