package conversations

import (
	"time"

	"github.com/google/uuid"
)

// State is the position of a conversation in the booking dialogue.
type State string

const (
	StateGreeting       State = "greeting"
	StateCollectingInfo State = "collecting_info"
	StateConfirming     State = "confirming"
	StateCompleted      State = "completed"
)

// Valid reports whether s is a known conversation state.
func (s State) Valid() bool {
	switch s {
	case StateGreeting, StateCollectingInfo, StateConfirming, StateCompleted:
		return true
	}
	return false
}

// Platform identifies the messaging channel a conversation lives on.
type Platform string

const (
	PlatformWhatsApp Platform = "whatsapp"
	PlatformTelegram Platform = "telegram"
	PlatformGeneric  Platform = "generic"
)

// MessageType classifies message content. Media beyond the type tag is not stored.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeDocument MessageType = "document"
	MessageTypeLocation MessageType = "location"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeDocument, MessageTypeLocation:
		return true
	}
	return false
}

// Conversation is the persisted state of one user's booking dialogue on one platform.
type Conversation struct {
	ID             uuid.UUID `json:"id"`
	PhoneNumber    string    `json:"phone_number"`
	Platform       Platform  `json:"platform"`
	PlatformUserID string    `json:"platform_user_id"`
	ChatID         string    `json:"chat_id,omitempty"`
	DisplayName    string    `json:"display_name,omitempty"`
	State          State     `json:"state"`
	IsComplete     bool      `json:"is_complete"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Message is a single inbound or outbound turn, owned by its conversation.
// Messages are append-only and ordered by timestamp.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"message_type"`
	SenderID       string      `json:"sender_id"`
	IsFromBot      bool        `json:"is_from_bot"`
	IsComplete     bool        `json:"is_complete"`
	Platform       Platform    `json:"platform"`
	Timestamp      time.Time   `json:"timestamp"`
}
