// Package event defines the enumerated push protocol delivered to live
// connections. Every event is a tagged variant with a fixed payload shape;
// consumers switch on the concrete type, the wire layer switches on Kind.
package event

import (
	"time"

	"chat-relay/domain"
)

type Kind string

const (
	KindConnected       Kind = "connected"
	KindMessageReceived Kind = "message_received"
	KindTyping          Kind = "typing"
	KindStopTyping      Kind = "stop_typing"
	KindUserOnline      Kind = "user_online"
	KindUserOffline     Kind = "user_offline"
)

type DomainEvent interface {
	Kind() Kind
}

// Connected acknowledges a successful identification handshake.
type Connected struct {
	UserID string
}

func (Connected) Kind() Kind { return KindConnected }

// MessageReceived carries a fully resolved, already committed message.
type MessageReceived struct {
	Message domain.Message
}

func (MessageReceived) Kind() Kind { return KindMessageReceived }

// Typing and StopTyping are ephemeral signals relayed between room
// subscribers. No delivery guarantee, no persistence.
type Typing struct {
	RoomID string
	UserID string
}

func (Typing) Kind() Kind { return KindTyping }

type StopTyping struct {
	RoomID string
	UserID string
}

func (StopTyping) Kind() Kind { return KindStopTyping }

// UserOnline and UserOffline are presence transitions broadcast to every
// identified connection.
type UserOnline struct {
	UserID string
	At     time.Time
}

func (UserOnline) Kind() Kind { return KindUserOnline }

type UserOffline struct {
	UserID   string
	LastSeen time.Time
}

func (UserOffline) Kind() Kind { return KindUserOffline }
