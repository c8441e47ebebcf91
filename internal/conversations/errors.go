package conversations

import "errors"

var (
	// ErrConversationNotFound is returned when a conversation id or lookup key is unknown
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidState is returned when a state value is not part of the lifecycle
	ErrInvalidState = errors.New("invalid conversation state")
)
