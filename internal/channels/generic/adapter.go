// Package generic accepts plain JSON webhooks from platforms without a
// dedicated adapter. Callers are expected to sit behind their own transport
// security; the payload carries no signature.
package generic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/salonhq/booking-assistant/internal/channels"
	"github.com/salonhq/booking-assistant/pkg/logging"
)

// Payload is the inbound JSON shape.
type Payload struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
	MessageType string `json:"message_type,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// Adapter parses generic webhook payloads.
type Adapter struct{}

// NewAdapter creates a generic adapter.
func NewAdapter() *Adapter { return &Adapter{} }

// Platform returns the channel tag.
func (a *Adapter) Platform() string { return channels.PlatformGeneric }

// ParseWebhook extracts a canonical inbound message from the payload.
func (a *Adapter) ParseWebhook(body []byte) ([]channels.InboundMessage, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("generic: decode payload: %w", err)
	}
	if p.PhoneNumber == "" {
		return nil, fmt.Errorf("generic: phone_number is required")
	}
	if p.Message == "" {
		return nil, fmt.Errorf("generic: message is required")
	}

	phone := channels.NormalizeE164(p.PhoneNumber)
	if phone == "" {
		return nil, fmt.Errorf("generic: phone_number %q is not usable", p.PhoneNumber)
	}

	msgType := p.MessageType
	if msgType == "" {
		msgType = "text"
	}
	switch msgType {
	case "text", "image", "document", "location":
	default:
		return nil, fmt.Errorf("generic: unknown message_type %q", p.MessageType)
	}

	ts := time.Now().UTC()
	if p.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("generic: parse timestamp: %w", err)
		}
		ts = parsed.UTC()
	}

	return []channels.InboundMessage{{
		Platform:    channels.PlatformGeneric,
		SenderID:    phone,
		PhoneNumber: phone,
		Content:     p.Message,
		MessageType: msgType,
		Timestamp:   ts,
	}}, nil
}

// Sender logs outbound replies instead of delivering them. Generic callers
// poll the conversation history for the bot's reply.
type Sender struct {
	logger *logging.Logger
}

// NewSender creates the logging sender.
func NewSender(logger *logging.Logger) *Sender {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{logger: logger}
}

// SendText records the reply in the log.
func (s *Sender) SendText(_ context.Context, recipient, text string) error {
	s.logger.Info("generic reply", "recipient", recipient, "text", text)
	return nil
}
