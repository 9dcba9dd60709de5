package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chat-relay/errors"
	"chat-relay/services"
)

// Handler exposes the request/response surface: sends, history, read
// marks and conversation listing. Pushes never go through here; this is
// the pull-authoritative channel.
type Handler struct {
	log      *slog.Logger
	chat     *services.ChatService
	validate *validator.Validate
}

func NewHandler(log *slog.Logger, chat *services.ChatService) *Handler {
	return &Handler{log: log, chat: chat, validate: validator.New()}
}

type accessConversationRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type createGroupRequest struct {
	Name      string   `json:"name" validate:"required"`
	MemberIDs []string `json:"memberIds" validate:"required,min=2,dive,required"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type renameGroupRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Name           string `json:"name" validate:"required"`
}

type groupMemberRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	UserID         string `json:"userId" validate:"required"`
}

// AccessConversation returns the direct conversation with the given
// user, creating it on first contact.
// POST /api/conversations
func (h *Handler) AccessConversation(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req accessConversationRequest
	if !h.decode(w, r, &req) {
		return
	}

	conversation, created, err := h.chat.AccessDirect(r.Context(), userID, req.UserID)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, conversation)
}

// CreateGroup creates a group conversation administered by the caller.
// POST /api/conversations/group
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createGroupRequest
	if !h.decode(w, r, &req) {
		return
	}

	conversation, err := h.chat.CreateGroup(r.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversation)
}

// RenameGroup changes the display name of a group the caller
// administers.
// PUT /api/conversations/group/rename
func (h *Handler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req renameGroupRequest
	if !h.decode(w, r, &req) {
		return
	}

	conversation, err := h.chat.RenameGroup(r.Context(), userID, req.ConversationID, req.Name)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

// AddToGroup adds a user to a group the caller administers.
// PUT /api/conversations/group/add
func (h *Handler) AddToGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req groupMemberRequest
	if !h.decode(w, r, &req) {
		return
	}

	conversation, err := h.chat.AddToGroup(r.Context(), userID, req.ConversationID, req.UserID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

// RemoveFromGroup removes a user from a group the caller administers.
// PUT /api/conversations/group/remove
func (h *Handler) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req groupMemberRequest
	if !h.decode(w, r, &req) {
		return
	}

	conversation, err := h.chat.RemoveFromGroup(r.Context(), userID, req.ConversationID, req.UserID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

// ListConversations returns the caller's conversations with unread
// counts. The "active" query parameter is the client hint that forces a
// zero count for the conversation currently open.
// GET /api/conversations?active={conversationID}
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	summaries, err := h.chat.Conversations(r.Context(), userID, r.URL.Query().Get("active"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// History returns the full message list, oldest first. Anything a
// missed push skipped is visible here.
// GET /api/conversations/{conversationID}/messages
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messages, err := h.chat.History(r.Context(), userID, chi.URLParam(r, "conversationID"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// SendMessage persists the message and responds with the committed
// record; fan-out happens in the background and the response never
// waits for it.
// POST /api/conversations/{conversationID}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req sendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	message, err := h.chat.SendMessage(r.Context(), userID, chi.URLParam(r, "conversationID"), req.Content)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

// GetMessage re-fetches one committed message by ID.
// GET /api/conversations/{conversationID}/messages/{messageID}
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	message, err := h.chat.Message(r.Context(), userID, chi.URLParam(r, "conversationID"), messageID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message)
}

// SearchUsers is the directory lookup for starting a conversation.
// GET /api/users?search={keyword}
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	users, err := h.chat.SearchUsers(r.Context(), userID, r.URL.Query().Get("search"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Profile returns the caller's own record, presence fields included.
// GET /api/users/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.chat.Profile(r.Context(), userID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// MarkRead acknowledges every unread message of the conversation for the
// caller.
// PUT /api/conversations/{conversationID}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.chat.MarkRead(r.Context(), userID, chi.URLParam(r, "conversationID")); err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "messages marked as read"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	switch err {
	case errors.ErrConversationNotFound, errors.ErrMessageNotFound, errors.ErrUserNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case errors.ErrNotParticipant, errors.ErrNotAdmin:
		writeError(w, http.StatusForbidden, err.Error())
	case errors.ErrSelfConversation, errors.ErrNotGroup, errors.ErrAlreadyInGroup, errors.ErrNotInGroup:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
