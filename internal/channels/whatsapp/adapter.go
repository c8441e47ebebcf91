package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/salonhq/booking-assistant/internal/channels"
)

// Adapter normalizes WhatsApp Cloud API webhooks into canonical inbound
// messages and verifies their authenticity.
type Adapter struct {
	verifyToken string
	appSecret   string
}

// NewAdapter creates a WhatsApp adapter.
func NewAdapter(verifyToken, appSecret string) *Adapter {
	return &Adapter{verifyToken: verifyToken, appSecret: appSecret}
}

// Platform returns the channel tag.
func (a *Adapter) Platform() string { return channels.PlatformWhatsApp }

// VerifyChallenge checks the GET verification request from Meta and returns
// the challenge string to echo back.
func (a *Adapter) VerifyChallenge(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token == a.verifyToken {
		return challenge, true
	}
	return "", false
}

// VerifySignature verifies the X-Hub-Signature-256 header against the raw body.
func (a *Adapter) VerifySignature(body []byte, signature string) bool {
	if a.appSecret == "" || signature == "" {
		return false
	}

	// Signature format: "sha256=<hex>"
	const prefix = "sha256="
	if len(signature) <= len(prefix) {
		return false
	}
	sigHex := signature[len(prefix):]

	mac := hmac.New(sha256.New, []byte(a.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sigHex))
}

// ParseWebhook extracts canonical inbound messages from a webhook body.
func (a *Adapter) ParseWebhook(body []byte) ([]channels.InboundMessage, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("whatsapp: decode webhook: %w", err)
	}

	var out []channels.InboundMessage
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				parsed := channels.InboundMessage{
					Platform:          channels.PlatformWhatsApp,
					ProviderMessageID: m.ID,
					SenderID:          m.From,
					PhoneNumber:       channels.NormalizeE164(m.From),
					DisplayName:       names[m.From],
					Timestamp:         parseUnixSeconds(m.Timestamp),
				}
				switch m.Type {
				case "text":
					parsed.MessageType = "text"
					if m.Text != nil {
						parsed.Content = m.Text.Body
					}
				case "image":
					parsed.MessageType = "image"
					if m.Image != nil {
						parsed.Content = m.Image.Caption
					}
				case "document":
					parsed.MessageType = "document"
					if m.Document != nil {
						parsed.Content = m.Document.Caption
					}
				case "location":
					parsed.MessageType = "location"
					if m.Location != nil {
						parsed.Content = fmt.Sprintf("%f,%f", m.Location.Latitude, m.Location.Longitude)
					}
				default:
					continue
				}
				out = append(out, parsed)
			}
		}
	}
	return out, nil
}

func parseUnixSeconds(value string) time.Time {
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
