package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
)

// ChatService is the request/response surface over the durable store.
// Sends follow persist-then-notify: the store commits before fan-out is
// triggered, and the caller never waits for a push to reach anyone.
type ChatService struct {
	messages      contract.MessageStore
	conversations contract.ConversationStore
	users         contract.UserStore
	fanout        contract.IFanout
	readState     *ReadStateTracker
	log           *slog.Logger
}

func NewChatService(log *slog.Logger, messages contract.MessageStore,
	conversations contract.ConversationStore, users contract.UserStore,
	fanout contract.IFanout, readState *ReadStateTracker) *ChatService {
	return &ChatService{
		messages:      messages,
		conversations: conversations,
		users:         users,
		fanout:        fanout,
		readState:     readState,
		log:           log,
	}
}

// ConversationSummary decorates a conversation with the caller's unread
// count for listing.
type ConversationSummary struct {
	domain.Conversation
	UnreadCount int `json:"unreadCount"`
}

// SendMessage persists the message, then hands it to fan-out in the
// background. A client can always re-fetch by ID anything it was pushed:
// the returned message is the committed record.
func (s *ChatService) SendMessage(ctx context.Context, senderID, conversationID, content string) (domain.Message, error) {
	conversation, err := s.conversations.Get(conversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conversation.HasParticipant(senderID) {
		return domain.Message{}, errors.ErrNotParticipant
	}

	message := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
		ReadBy:         []string{},
	}
	if err := s.messages.StoreMessage(message); err != nil {
		return domain.Message{}, err
	}

	if err := s.conversations.SetLatestMessage(conversationID, message.ID, message.CreatedAt); err != nil {
		s.log.Warn("Failed to update latest message",
			"conversation_id", conversationID,
			"error", err)
	}

	// Fire and forget: the response does not wait for any recipient.
	// WithoutCancel keeps the push alive after the HTTP request returns.
	go s.fanout.Deliver(context.WithoutCancel(ctx), message, conversation.ParticipantIDs)

	return message, nil
}

// History is the pull-authoritative read: whatever fan-out missed is
// visible here.
func (s *ChatService) History(ctx context.Context, userID, conversationID string) ([]domain.Message, error) {
	conversation, err := s.conversations.Get(conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, errors.ErrNotParticipant
	}
	return s.messages.GetMessages(conversationID)
}

func (s *ChatService) MarkRead(ctx context.Context, userID, conversationID string) error {
	conversation, err := s.conversations.Get(conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(userID) {
		return errors.ErrNotParticipant
	}
	return s.readState.MarkRead(ctx, userID, conversationID)
}

// Conversations lists the caller's conversations, most recently active
// first, each with its unread count. The active hint forces zero for the
// conversation currently open on the client.
func (s *ChatService) Conversations(ctx context.Context, userID, activeConversationID string) ([]ConversationSummary, error) {
	conversations, err := s.conversations.ForUser(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		unread, err := s.readState.Unread(ctx, userID, conversation.ID, activeConversationID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, ConversationSummary{Conversation: conversation, UnreadCount: unread})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// AccessDirect returns the existing one-to-one conversation with otherID
// or creates it. The boolean reports creation.
func (s *ChatService) AccessDirect(ctx context.Context, userID, otherID string) (domain.Conversation, bool, error) {
	if userID == otherID {
		return domain.Conversation{}, false, errors.ErrSelfConversation
	}

	existing, err := s.conversations.FindDirect(userID, otherID)
	if err != nil {
		return domain.Conversation{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	conversation := domain.Conversation{
		ID:             uuid.NewString(),
		IsGroup:        false,
		ParticipantIDs: []string{userID, otherID},
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.conversations.Create(conversation); err != nil {
		return domain.Conversation{}, false, err
	}
	return conversation, true, nil
}

// CreateGroup creates a group conversation administered by adminID.
// memberIDs excludes the admin; the handler validates the minimum size.
// Duplicated members collapse into one participant so nobody is fanned
// out to twice.
func (s *ChatService) CreateGroup(ctx context.Context, adminID, name string, memberIDs []string) (domain.Conversation, error) {
	participants := lo.Uniq(append(append([]string{}, memberIDs...), adminID))

	conversation := domain.Conversation{
		ID:             uuid.NewString(),
		Name:           name,
		IsGroup:        true,
		ParticipantIDs: participants,
		AdminID:        adminID,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.conversations.Create(conversation); err != nil {
		return domain.Conversation{}, err
	}
	return conversation, nil
}

// adminGroup loads the conversation and checks it is a group
// administered by the caller. Every group mutation goes through here.
func (s *ChatService) adminGroup(conversationID, adminID string) (domain.Conversation, error) {
	conversation, err := s.conversations.Get(conversationID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conversation.IsGroup {
		return domain.Conversation{}, errors.ErrNotGroup
	}
	if conversation.AdminID != adminID {
		return domain.Conversation{}, errors.ErrNotAdmin
	}
	return conversation, nil
}

// RenameGroup changes the display name of a group.
func (s *ChatService) RenameGroup(ctx context.Context, adminID, conversationID, name string) (domain.Conversation, error) {
	if _, err := s.adminGroup(conversationID, adminID); err != nil {
		return domain.Conversation{}, err
	}
	return s.conversations.Rename(conversationID, name)
}

// AddToGroup adds a user to a group. Only the admin may do this, and a
// user already in the group is refused rather than duplicated.
func (s *ChatService) AddToGroup(ctx context.Context, adminID, conversationID, userID string) (domain.Conversation, error) {
	conversation, err := s.adminGroup(conversationID, adminID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if conversation.HasParticipant(userID) {
		return domain.Conversation{}, errors.ErrAlreadyInGroup
	}
	return s.conversations.AddParticipant(conversationID, userID)
}

// RemoveFromGroup removes a user from a group, admin only.
func (s *ChatService) RemoveFromGroup(ctx context.Context, adminID, conversationID, userID string) (domain.Conversation, error) {
	conversation, err := s.adminGroup(conversationID, adminID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conversation.HasParticipant(userID) {
		return domain.Conversation{}, errors.ErrNotInGroup
	}
	return s.conversations.RemoveParticipant(conversationID, userID)
}

// Message re-fetches one committed message by ID, the recovery path for
// a client that only caught a push notification.
func (s *ChatService) Message(ctx context.Context, userID, conversationID string, messageID uuid.UUID) (domain.Message, error) {
	conversation, err := s.conversations.Get(conversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if !conversation.HasParticipant(userID) {
		return domain.Message{}, errors.ErrNotParticipant
	}
	return s.messages.GetMessage(conversationID, messageID)
}

// SearchUsers is the directory lookup backing the "start a chat"
// surface. The caller never appears in their own results.
func (s *ChatService) SearchUsers(ctx context.Context, userID, keyword string) ([]domain.User, error) {
	return s.users.Search(keyword, userID)
}

// Profile returns the caller's own stored record.
func (s *ChatService) Profile(ctx context.Context, userID string) (domain.User, error) {
	return s.users.Get(userID)
}
