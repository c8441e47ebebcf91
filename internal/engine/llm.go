package engine

import (
	"context"

	"github.com/salonhq/booking-assistant/internal/bookings"
	"github.com/salonhq/booking-assistant/internal/conversations"
)

// ChatMessage is one prompt turn in provider-neutral form.
type ChatMessage struct {
	Role    string `json:"role"` // system|user|assistant
	Content string `json:"content"`
}

// Prompt is the full model input for one turn.
type Prompt struct {
	System   string
	History  []ChatMessage
	Known    bookings.Fields
	State    conversations.State
	Platform conversations.Platform
}

// TurnResult is what the model produced for one turn. Everything in it is
// untrusted: the engine validates the proposed state against the transition
// table and the fields against booking validation before acting on them.
type TurnResult struct {
	Reply         string
	Fields        bookings.Fields
	ProposedState conversations.State
}

// LLMClient generates the assistant's side of a turn.
type LLMClient interface {
	CompleteTurn(ctx context.Context, prompt Prompt) (*TurnResult, error)
}
