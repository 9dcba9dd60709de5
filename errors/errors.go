package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Session lifecycle
	ErrNotIdentified     = fmt.Errorf("connection is not identified")
	ErrSessionClosed     = fmt.Errorf("session is closed")
	ErrAlreadyIdentified = fmt.Errorf("connection already bound to another user")
	ErrSinkFull          = fmt.Errorf("event sink buffer full")

	// Collaborator (store / API) errors
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrUserNotFound         = fmt.Errorf("user not found")
	ErrNotParticipant       = fmt.Errorf("user is not a participant of this conversation")
	ErrSelfConversation     = fmt.Errorf("cannot open a conversation with yourself")
	ErrInvalidToken         = fmt.Errorf("invalid or expired token")

	// Group management
	ErrNotGroup       = fmt.Errorf("conversation is not a group")
	ErrNotAdmin       = fmt.Errorf("only the group admin can modify the group")
	ErrAlreadyInGroup = fmt.Errorf("user is already in the group")
	ErrNotInGroup     = fmt.Errorf("user is not in the group")
)
