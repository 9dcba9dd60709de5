package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/errors"
)

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// diskMessage is the stored shape; ReadBy is the only field that mutates
// after the initial write.
type diskMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	At             int64     `json:"at"`
	ReadBy         []string  `json:"readBy,omitempty"`
}

// messageKey formats "msg:{conversation}:{timestamp_padded}:{uuid}" so that:
//  1. A prefix scan per conversation returns chronological order
//     (19-digit zero padding keeps lexicographic = numeric order).
//  2. The UUID disambiguates two messages on the same nanosecond.
func messageKey(conversationID string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", conversationID, at.UnixNano(), id))
}

func messagePrefix(conversationID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conversationID))
}

func (m MessageRepository) StoreMessage(message domain.Message) error {
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.ConversationID, message.CreatedAt, message.ID), bytes)
	})
}

// GetMessages returns the conversation's messages oldest first. The
// padded timestamp in the key makes the prefix scan naturally sorted, so
// no in-memory sort is needed. Collection stops at the configured limit.
func (m MessageRepository) GetMessages(conversationID string) ([]domain.Message, error) {
	var raw [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(raw) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		var dm diskMessage
		if err = json.Unmarshal(b, &dm); err != nil {
			return nil, err
		}
		messages = append(messages, toMessage(dm))
	}
	return messages, nil
}

// GetMessage scans the conversation's prefix for the given ID. Keys embed
// the creation timestamp, so a point lookup walks the prefix.
func (m MessageRepository) GetMessage(conversationID string, id uuid.UUID) (domain.Message, error) {
	suffix := ":" + id.String()
	var found *diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), suffix) {
				continue
			}
			return item.Value(func(value []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(value, &dm); err != nil {
					return err
				}
				found = &dm
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	if found == nil {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	return toMessage(*found), nil
}

// MarkRead adds userID to ReadBy of every message in the conversation
// sent by someone else and not yet acknowledged, in a single transaction.
// Returns the number of updated messages; zero qualifying messages is a
// no-op, not an error.
func (m MessageRepository) MarkRead(userID, conversationID string) (int, error) {
	updated := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var dm diskMessage
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			})
			if err != nil {
				return err
			}
			if !toMessage(dm).UnreadBy(userID) {
				continue
			}
			dm.ReadBy = append(dm.ReadBy, userID)
			bytes, err := json.Marshal(dm)
			if err != nil {
				return err
			}
			if err := txn.Set(append([]byte(nil), item.Key()...), bytes); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// CountUnread recounts on every call; there is no cache to invalidate.
func (m MessageRepository) CountUnread(userID, conversationID string) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dm diskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			})
			if err != nil {
				return err
			}
			if toMessage(dm).UnreadBy(userID) {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Content:        message.Content,
		At:             message.CreatedAt.UnixNano(),
		ReadBy:         message.ReadBy,
	}
}

func toMessage(dm diskMessage) domain.Message {
	return domain.Message{
		ID:             dm.ID,
		ConversationID: dm.ConversationID,
		SenderID:       dm.SenderID,
		Content:        dm.Content,
		CreatedAt:      time.Unix(0, dm.At).UTC(),
		ReadBy:         lo.Ternary(dm.ReadBy != nil, dm.ReadBy, []string{}),
	}
}
