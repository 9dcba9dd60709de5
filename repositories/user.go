package repositories

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	"chat-relay/errors"
)

type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) UserRepository {
	return UserRepository{db: db, log: log}
}

func userKey(id string) []byte {
	return []byte("user:" + id)
}

func (u UserRepository) Get(id string) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &user)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u UserRepository) Upsert(user domain.User) error {
	bytes, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return u.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(user.ID), bytes)
	})
}

// maxSearchResults caps a directory scan; the store is not indexed for
// text search.
const maxSearchResults = 50

// Search returns users whose name or email contains the keyword,
// case-insensitive, sorted by name. An empty keyword lists everyone.
// The excluded user is the caller searching for someone else to talk to.
func (u UserRepository) Search(keyword, excludeUserID string) ([]domain.User, error) {
	needle := strings.ToLower(strings.TrimSpace(keyword))

	var users []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user domain.User
			if err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &user)
			}); err != nil {
				return err
			}
			if user.ID == excludeUserID {
				continue
			}
			if needle != "" &&
				!strings.Contains(strings.ToLower(user.Name), needle) &&
				!strings.Contains(strings.ToLower(user.Email), needle) {
				continue
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	if len(users) > maxSearchResults {
		users = users[:maxSearchResults]
	}
	return users, nil
}

// SetOnlineStatus updates the presence columns of the user record. An
// unknown user gets a minimal record so lastSeen survives a transition
// observed before the profile was stored.
func (u UserRepository) SetOnlineStatus(userID string, online bool, at time.Time) error {
	return u.db.Update(func(txn *badger.Txn) error {
		user := domain.User{ID: userID}
		item, err := txn.Get(userKey(userID))
		switch err {
		case nil:
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &user)
			}); err != nil {
				return err
			}
		case badger.ErrKeyNotFound:
			u.log.Debug("Creating presence-only user record", "user_id", userID)
		default:
			return err
		}

		user.IsOnline = online
		user.LastSeen = at
		bytes, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return txn.Set(userKey(userID), bytes)
	})
}
