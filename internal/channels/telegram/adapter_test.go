package telegram

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleUpdate = `{
  "update_id": 900001,
  "message": {
    "message_id": 42,
    "from": {"id": 777000, "is_bot": false, "first_name": "Mert", "last_name": "K", "username": "mertk"},
    "chat": {"id": 777000, "type": "private"},
    "date": 1700000000,
    "text": "I'd like to book a beard trim"
  }
}`

func TestVerifySecret(t *testing.T) {
	a := NewAdapter("hook-secret")
	assert.True(t, a.VerifySecret("hook-secret"))
	assert.False(t, a.VerifySecret("wrong"))
	assert.False(t, a.VerifySecret(""))

	// No configured secret accepts everything.
	open := NewAdapter("")
	assert.True(t, open.VerifySecret(""))
	assert.True(t, open.VerifySecret("anything"))
}

func TestParseWebhookText(t *testing.T) {
	a := NewAdapter("hook-secret")

	msgs, err := a.ParseWebhook([]byte(sampleUpdate))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, "telegram", m.Platform)
	assert.Equal(t, "42", m.ProviderMessageID)
	assert.Equal(t, "777000", m.SenderID)
	assert.Equal(t, "777000", m.ChatID)
	assert.Equal(t, "Mert K", m.DisplayName)
	assert.Equal(t, "I'd like to book a beard trim", m.Content)
	assert.Equal(t, "text", m.MessageType)
	assert.Empty(t, m.PhoneNumber, "no phone without a shared contact")
	assert.Equal(t, int64(1700000000), m.Timestamp.Unix())
}

func TestParseWebhookSharedContact(t *testing.T) {
	a := NewAdapter("hook-secret")

	body := `{
	  "update_id": 900002,
	  "message": {
	    "message_id": 43,
	    "from": {"id": 777000, "first_name": "Mert"},
	    "chat": {"id": 777000, "type": "private"},
	    "date": 1700000100,
	    "contact": {"phone_number": "+90 532 111 22 33", "first_name": "Mert", "user_id": 777000}
	  }
	}`
	msgs, err := a.ParseWebhook([]byte(body))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	assert.Equal(t, "+905321112233", msgs[0].PhoneNumber)
	assert.Equal(t, "text", msgs[0].MessageType)
	assert.Contains(t, msgs[0].Content, "+90 532 111 22 33")
}

func TestParseWebhookNonMessageUpdate(t *testing.T) {
	a := NewAdapter("hook-secret")

	msgs, err := a.ParseWebhook([]byte(`{"update_id": 900003, "edited_message": {"message_id": 1}}`))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestParseWebhookInvalidJSON(t *testing.T) {
	a := NewAdapter("hook-secret")
	_, err := a.ParseWebhook([]byte("{"))
	assert.Error(t, err)
}

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 1}, f.err
}

func TestSenderSendText(t *testing.T) {
	bot := &fakeBot{}
	s := newSender(bot, 0, nil)

	require.NoError(t, s.SendText(context.Background(), "777000", "Friday at 14:00 works"))
	require.Len(t, bot.sent, 1)

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(777000), msg.ChatID)
	assert.Equal(t, "Friday at 14:00 works", msg.Text)
}

func TestSenderBadChatID(t *testing.T) {
	s := newSender(&fakeBot{}, 0, nil)
	err := s.SendText(context.Background(), "not-a-number", "hi")
	assert.Error(t, err)
}
