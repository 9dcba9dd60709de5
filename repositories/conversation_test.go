package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/errors"
)

func newDirectConversation(userA, userB string) domain.Conversation {
	return domain.Conversation{
		ID:             uuid.NewString(),
		Name:           "",
		IsGroup:        false,
		ParticipantIDs: []string{userA, userB},
		AdminID:        userA,
		UpdatedAt:      time.Now().UTC(),
	}
}

func Test_Create_And_Get_Conversation(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewConversationRepository(db, slog.Default())
	conversation := newDirectConversation("alice", "bob")
	req.NoError(repository.Create(conversation))

	fetched, err := repository.Get(conversation.ID)
	req.NoError(err)
	req.Equal(conversation, fetched)

	_, err = repository.Get(uuid.NewString())
	req.ErrorIs(err, errors.ErrConversationNotFound)
}

func Test_ForUser_Uses_The_Member_Index(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewConversationRepository(db, slog.Default())
	withBob := newDirectConversation("alice", "bob")
	withCarol := newDirectConversation("alice", "carol")
	bobOnly := newDirectConversation("bob", "carol")
	for _, conversation := range []domain.Conversation{withBob, withCarol, bobOnly} {
		req.NoError(repository.Create(conversation))
	}

	conversations, err := repository.ForUser("alice")
	req.NoError(err)
	req.Len(conversations, 2)
	for _, conversation := range conversations {
		req.True(conversation.HasParticipant("alice"))
	}

	conversations, err = repository.ForUser("dave")
	req.NoError(err)
	req.Empty(conversations)
}

func Test_FindDirect_Ignores_Groups(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewConversationRepository(db, slog.Default())
	group := domain.Conversation{
		ID:             uuid.NewString(),
		Name:           "the lab",
		IsGroup:        true,
		ParticipantIDs: []string{"alice", "bob", "carol"},
		AdminID:        "alice",
		UpdatedAt:      time.Now().UTC(),
	}
	req.NoError(repository.Create(group))

	// A group containing both users is not a direct conversation
	found, err := repository.FindDirect("alice", "bob")
	req.NoError(err)
	req.Nil(found)

	direct := newDirectConversation("alice", "bob")
	req.NoError(repository.Create(direct))

	found, err = repository.FindDirect("alice", "bob")
	req.NoError(err)
	req.NotNil(found)
	req.Equal(direct.ID, found.ID)

	// Symmetric lookup
	found, err = repository.FindDirect("bob", "alice")
	req.NoError(err)
	req.NotNil(found)
	req.Equal(direct.ID, found.ID)
}

func newGroupConversation(adminID string, memberIDs ...string) domain.Conversation {
	return domain.Conversation{
		ID:             uuid.NewString(),
		Name:           "the lab",
		IsGroup:        true,
		ParticipantIDs: append(memberIDs, adminID),
		AdminID:        adminID,
		UpdatedAt:      time.Now().UTC(),
	}
}

func Test_Rename_Updates_The_Stored_Record(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewConversationRepository(db, slog.Default())
	group := newGroupConversation("alice", "bob", "carol")
	req.NoError(repository.Create(group))

	renamed, err := repository.Rename(group.ID, "the new lab")
	req.NoError(err)
	req.Equal("the new lab", renamed.Name)

	fetched, err := repository.Get(group.ID)
	req.NoError(err)
	req.Equal("the new lab", fetched.Name)

	_, err = repository.Rename(uuid.NewString(), "nowhere")
	req.ErrorIs(err, errors.ErrConversationNotFound)
}

func Test_AddParticipant_Updates_The_Member_Index(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewConversationRepository(db, slog.Default())
	group := newGroupConversation("alice", "bob", "carol")
	req.NoError(repository.Create(group))

	added, err := repository.AddParticipant(group.ID, "dave")
	req.NoError(err)
	req.True(added.HasParticipant("dave"))

	// The index entry makes the group visible from dave's side
	conversations, err := repository.ForUser("dave")
	req.NoError(err)
	req.Len(conversations, 1)
	req.Equal(group.ID, conversations[0].ID)
}

func Test_RemoveParticipant_Cleans_The_Member_Index(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewConversationRepository(db, slog.Default())
	group := newGroupConversation("alice", "bob", "carol")
	req.NoError(repository.Create(group))

	removed, err := repository.RemoveParticipant(group.ID, "carol")
	req.NoError(err)
	req.False(removed.HasParticipant("carol"))
	req.True(removed.HasParticipant("bob"))

	conversations, err := repository.ForUser("carol")
	req.NoError(err)
	req.Empty(conversations)

	// The remaining members still see the group
	conversations, err = repository.ForUser("bob")
	req.NoError(err)
	req.Len(conversations, 1)
}

func Test_SetLatestMessage_Updates_Recency(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewConversationRepository(db, slog.Default())
	conversation := newDirectConversation("alice", "bob")
	req.NoError(repository.Create(conversation))

	messageID := uuid.New()
	at := time.Now().UTC().Add(time.Hour)
	req.NoError(repository.SetLatestMessage(conversation.ID, messageID, at))

	fetched, err := repository.Get(conversation.ID)
	req.NoError(err)
	req.NotNil(fetched.LatestMessageID)
	req.Equal(messageID, *fetched.LatestMessageID)
	req.Equal(at, fetched.UpdatedAt)

	req.ErrorIs(repository.SetLatestMessage(uuid.NewString(), messageID, at),
		errors.ErrConversationNotFound)
}
