package conversations

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines conversation and message persistence. Messages live here
// because they are owned by their conversation.
type Store interface {
	FindOrCreate(ctx context.Context, c *Conversation) (*Conversation, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	GetByPhone(ctx context.Context, phone string) (*Conversation, error)
	List(ctx context.Context, activeOnly bool) ([]*Conversation, error)
	UpdateState(ctx context.Context, id uuid.UUID, state State, isComplete bool) error
	Reset(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error

	AppendMessage(ctx context.Context, m *Message) error
	Messages(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, error)
	History(ctx context.Context, conversationID uuid.UUID) ([]*Message, error)
	InboundExists(ctx context.Context, conversationID uuid.UUID, senderID, content string, ts time.Time) (bool, error)
}
