// Package ws carries the push protocol over a websocket. Frames are
// tagged JSON with a fixed payload shape per type; unknown fields are
// ignored, unknown types are logged and dropped.
package ws

import (
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// Client -> server frame types.
const (
	FrameSetup      = "setup"
	FrameJoin       = "join"
	FrameLeave      = "leave"
	FrameTyping     = "typing"
	FrameStopTyping = "stop_typing"
)

// ClientFrame is the single inbound shape; the relevant fields depend on
// Type.
type ClientFrame struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	RoomID string `json:"roomId,omitempty"`
}

// ServerFrame is the single outbound shape, derived from a DomainEvent.
type ServerFrame struct {
	Type     string          `json:"type"`
	UserID   string          `json:"userId,omitempty"`
	RoomID   string          `json:"roomId,omitempty"`
	Message  *domain.Message `json:"message,omitempty"`
	LastSeen *time.Time      `json:"lastSeen,omitempty"`
}

func toServerFrame(e event.DomainEvent) ServerFrame {
	switch evt := e.(type) {
	case event.Connected:
		return ServerFrame{Type: string(event.KindConnected), UserID: evt.UserID}
	case event.MessageReceived:
		message := evt.Message
		return ServerFrame{Type: string(event.KindMessageReceived), Message: &message}
	case event.Typing:
		return ServerFrame{Type: string(event.KindTyping), RoomID: evt.RoomID, UserID: evt.UserID}
	case event.StopTyping:
		return ServerFrame{Type: string(event.KindStopTyping), RoomID: evt.RoomID, UserID: evt.UserID}
	case event.UserOnline:
		return ServerFrame{Type: string(event.KindUserOnline), UserID: evt.UserID}
	case event.UserOffline:
		lastSeen := evt.LastSeen
		return ServerFrame{Type: string(event.KindUserOffline), UserID: evt.UserID, LastSeen: &lastSeen}
	default:
		return ServerFrame{Type: string(e.Kind())}
	}
}
