package ws

import (
	"context"

	"github.com/google/uuid"

	"chat-relay/domain/event"
	"chat-relay/errors"
)

// Conn is the registry-facing side of one websocket connection: a
// buffered event channel drained by the write pump.
type Conn struct {
	id     uuid.UUID
	events chan event.DomainEvent
}

func NewConn(bufferSize int) *Conn {
	return &Conn{id: uuid.New(), events: make(chan event.DomainEvent, bufferSize)}
}

func (c *Conn) ID() uuid.UUID { return c.id }

// Consume is called by fan-out, typing relay and the presence worker.
// It hands the event to the write pump without ever blocking the
// producer: a full channel drops the event and reports ErrSinkFull so
// the producer can count the drop (the durable store makes up for it on
// the next fetch).
func (c *Conn) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case c.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Backpressure: slow consumer, drop rather than stall the producer
		return errors.ErrSinkFull
	}
}

// Events is drained by the write pump only.
func (c *Conn) Events() <-chan event.DomainEvent {
	return c.events
}
