// Package channels normalizes messaging-platform wire formats into one
// canonical inbound message shape and sends replies back out. Adapters do
// transport only; they never touch conversation state.
package channels

import (
	"context"
	"time"
)

// Platform tags known messaging channels.
const (
	PlatformWhatsApp = "whatsapp"
	PlatformTelegram = "telegram"
	PlatformGeneric  = "generic"
)

// InboundMessage is the canonical shape every adapter produces.
type InboundMessage struct {
	Platform          string
	ProviderMessageID string
	SenderID          string
	ChatID            string
	PhoneNumber       string
	DisplayName       string
	Content           string
	MessageType       string // text|image|document|location
	Timestamp         time.Time
}

// Sender delivers a reply to a recipient on one platform.
type Sender interface {
	SendText(ctx context.Context, recipient string, text string) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, recipient string, text string) error

// SendText calls f.
func (f SenderFunc) SendText(ctx context.Context, recipient string, text string) error {
	return f(ctx, recipient, text)
}
