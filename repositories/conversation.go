package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/errors"
)

type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

func conversationKey(id string) []byte {
	return []byte("conv:" + id)
}

// memberKey is a secondary index "convuser:{user}:{conversation}" so that
// listing a user's conversations is a prefix scan instead of a full scan.
func memberKey(userID, conversationID string) []byte {
	return []byte(fmt.Sprintf("convuser:%s:%s", userID, conversationID))
}

// Create persists the conversation and one index entry per participant
// in the same transaction.
func (c ConversationRepository) Create(conversation domain.Conversation) error {
	bytes, err := json.Marshal(conversation)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(conversationKey(conversation.ID), bytes); err != nil {
			return err
		}
		for _, userID := range conversation.ParticipantIDs {
			if err := txn.Set(memberKey(userID, conversation.ID), []byte(conversation.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c ConversationRepository) Get(id string) (domain.Conversation, error) {
	var conversation domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &conversation)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Conversation{}, errors.ErrConversationNotFound
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	return conversation, nil
}

// ForUser resolves the member index, then loads each conversation.
func (c ConversationRepository) ForUser(userID string) ([]domain.Conversation, error) {
	var ids []string
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("convuser:%s:", userID))
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	conversations := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		conversation, err := c.Get(id)
		if err == errors.ErrConversationNotFound {
			c.log.Warn("Dangling conversation index entry", "conversation_id", id, "user_id", userID)
			continue
		}
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

// FindDirect returns the existing one-to-one conversation between two
// users, nil when none exists.
func (c ConversationRepository) FindDirect(userA, userB string) (*domain.Conversation, error) {
	conversations, err := c.ForUser(userA)
	if err != nil {
		return nil, err
	}
	for _, conversation := range conversations {
		if conversation.IsGroup || len(conversation.ParticipantIDs) != 2 {
			continue
		}
		if conversation.HasParticipant(userB) {
			return &conversation, nil
		}
	}
	return nil, nil
}

// mutate is a read-modify-write of one conversation inside a single
// transaction. fn may also touch index entries through txn.
func (c ConversationRepository) mutate(id string, fn func(txn *badger.Txn, conversation *domain.Conversation) error) (domain.Conversation, error) {
	var conversation domain.Conversation
	err := c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(id))
		if err == badger.ErrKeyNotFound {
			return errors.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(value []byte) error {
			return json.Unmarshal(value, &conversation)
		}); err != nil {
			return err
		}
		if err := fn(txn, &conversation); err != nil {
			return err
		}
		bytes, err := json.Marshal(conversation)
		if err != nil {
			return err
		}
		return txn.Set(conversationKey(id), bytes)
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return conversation, nil
}

func (c ConversationRepository) SetLatestMessage(id string, messageID uuid.UUID, at time.Time) error {
	_, err := c.mutate(id, func(_ *badger.Txn, conversation *domain.Conversation) error {
		conversation.LatestMessageID = &messageID
		conversation.UpdatedAt = at
		return nil
	})
	return err
}

// Rename updates the display name and returns the stored record.
func (c ConversationRepository) Rename(id, name string) (domain.Conversation, error) {
	return c.mutate(id, func(_ *badger.Txn, conversation *domain.Conversation) error {
		conversation.Name = name
		conversation.UpdatedAt = time.Now().UTC()
		return nil
	})
}

// AddParticipant appends the user and writes its member index entry in
// the same transaction, so ForUser sees the group immediately.
func (c ConversationRepository) AddParticipant(id, userID string) (domain.Conversation, error) {
	return c.mutate(id, func(txn *badger.Txn, conversation *domain.Conversation) error {
		conversation.ParticipantIDs = append(conversation.ParticipantIDs, userID)
		conversation.UpdatedAt = time.Now().UTC()
		return txn.Set(memberKey(userID, id), []byte(id))
	})
}

// RemoveParticipant drops the user and deletes its member index entry.
func (c ConversationRepository) RemoveParticipant(id, userID string) (domain.Conversation, error) {
	return c.mutate(id, func(txn *badger.Txn, conversation *domain.Conversation) error {
		conversation.ParticipantIDs = lo.Without(conversation.ParticipantIDs, userID)
		conversation.UpdatedAt = time.Now().UTC()
		return txn.Delete(memberKey(userID, id))
	})
}
