//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives push events for one live connection.
// Consume must never block the caller beyond ctx; a full or dead sink is
// the sink's problem, not the producer's.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Connection is one live transport connection as seen by the registries.
// Implementations must be comparable (pointer receivers) so they can be
// used as set members.
type Connection interface {
	EventSink
	ID() uuid.UUID
}

// IPresence maps a user to the set of its live identified connections.
type IPresence interface {
	Register(userID string, conn Connection)
	Unregister(conn Connection)
	IsOnline(userID string) bool
	ConnectionsOf(userID string) []Connection
}

// IRooms tracks ephemeral per-connection room subscriptions.
// Used for typing relay only; message fan-out goes through IPresence and
// the durable participant list.
type IRooms interface {
	Join(conn Connection, roomID string)
	Leave(conn Connection, roomID string)
	Drop(conn Connection)
	SubscribersOf(roomID string) []Connection
}

// IFanout pushes a committed message to the live connections of its
// conversation's participants, sender excluded.
type IFanout interface {
	Deliver(ctx context.Context, message domain.Message, participantIDs []string)
}

// MessageStore is the durable message collaborator. The runtime never
// bypasses it: push is best effort, this store is the source of truth.
type MessageStore interface {
	StoreMessage(message domain.Message) error
	GetMessages(conversationID string) ([]domain.Message, error)
	GetMessage(conversationID string, id uuid.UUID) (domain.Message, error)
	MarkRead(userID, conversationID string) (int, error)
	CountUnread(userID, conversationID string) (int, error)
}

type ConversationStore interface {
	Create(conversation domain.Conversation) error
	Get(id string) (domain.Conversation, error)
	ForUser(userID string) ([]domain.Conversation, error)
	FindDirect(userA, userB string) (*domain.Conversation, error)
	SetLatestMessage(id string, messageID uuid.UUID, at time.Time) error
	Rename(id, name string) (domain.Conversation, error)
	AddParticipant(id, userID string) (domain.Conversation, error)
	RemoveParticipant(id, userID string) (domain.Conversation, error)
}

type UserStore interface {
	Get(id string) (domain.User, error)
	Upsert(user domain.User) error
	Search(keyword, excludeUserID string) ([]domain.User, error)
	SetOnlineStatus(userID string, online bool, at time.Time) error
}

// TokenVerifier is the identity collaborator: it resolves the
// authenticated user ID asserted by a transport handshake or an HTTP
// request. Credential issuance happens elsewhere.
type TokenVerifier interface {
	Verify(token string) (string, error)
}
