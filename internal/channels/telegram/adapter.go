package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/salonhq/booking-assistant/internal/channels"
)

// Adapter normalizes Telegram Bot API webhook updates into canonical inbound
// messages. Telegram authenticates webhooks with a shared secret header
// instead of a body signature.
type Adapter struct {
	webhookSecret string
}

// NewAdapter creates a Telegram adapter.
func NewAdapter(webhookSecret string) *Adapter {
	return &Adapter{webhookSecret: webhookSecret}
}

// Platform returns the channel tag.
func (a *Adapter) Platform() string { return channels.PlatformTelegram }

// VerifySecret checks the X-Telegram-Bot-Api-Secret-Token header value. When
// no secret is configured, updates are accepted as-is.
func (a *Adapter) VerifySecret(headerValue string) bool {
	if a.webhookSecret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(a.webhookSecret), []byte(headerValue)) == 1
}

// ParseWebhook extracts a canonical inbound message from an update body.
// Updates without a message (edits, callbacks, channel posts) yield an empty
// slice, not an error.
func (a *Adapter) ParseWebhook(body []byte) ([]channels.InboundMessage, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("telegram: decode update: %w", err)
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil, nil
	}

	parsed := channels.InboundMessage{
		Platform:          channels.PlatformTelegram,
		ProviderMessageID: strconv.Itoa(msg.MessageID),
		SenderID:          strconv.FormatInt(msg.From.ID, 10),
		ChatID:            strconv.FormatInt(msg.Chat.ID, 10),
		DisplayName:       displayName(msg.From),
		Timestamp:         msg.Time().UTC(),
	}

	// Telegram only reveals the phone number when the user shares a contact.
	if msg.Contact != nil && msg.Contact.UserID == msg.From.ID {
		parsed.PhoneNumber = channels.NormalizeE164(msg.Contact.PhoneNumber)
	}

	switch {
	case msg.Text != "":
		parsed.MessageType = "text"
		parsed.Content = msg.Text
	case msg.Photo != nil:
		parsed.MessageType = "image"
		parsed.Content = msg.Caption
	case msg.Document != nil:
		parsed.MessageType = "document"
		parsed.Content = msg.Caption
	case msg.Location != nil:
		parsed.MessageType = "location"
		parsed.Content = fmt.Sprintf("%f,%f", msg.Location.Latitude, msg.Location.Longitude)
	case msg.Contact != nil:
		// A shared contact still advances the conversation: treat it as text
		// carrying the phone number so the extractor can pick it up.
		parsed.MessageType = "text"
		parsed.Content = "My phone number is " + msg.Contact.PhoneNumber
	default:
		return nil, nil
	}

	return []channels.InboundMessage{parsed}, nil
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
