package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleWebhook = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "1001",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550000000", "phone_number_id": "2002"},
        "contacts": [{"wa_id": "491701234567", "profile": {"name": "Anna"}}],
        "messages": [{
          "from": "491701234567",
          "id": "wamid.abc123",
          "timestamp": "1700000000",
          "type": "text",
          "text": {"body": "I'd like a haircut"}
        }]
      }
    }]
  }]
}`

func TestVerifyChallenge(t *testing.T) {
	a := NewAdapter("verify-me", "secret")

	challenge, ok := a.VerifyChallenge("subscribe", "verify-me", "12345")
	assert.True(t, ok)
	assert.Equal(t, "12345", challenge)

	_, ok = a.VerifyChallenge("subscribe", "wrong", "12345")
	assert.False(t, ok)

	_, ok = a.VerifyChallenge("unsubscribe", "verify-me", "12345")
	assert.False(t, ok)
}

func TestVerifySignature(t *testing.T) {
	a := NewAdapter("verify-me", "app-secret")
	body := []byte(`{"hello":"world"}`)

	mac := hmac.New(sha256.New, []byte("app-secret"))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.True(t, a.VerifySignature(body, sig))
	assert.False(t, a.VerifySignature(body, "sha256=deadbeef"))
	assert.False(t, a.VerifySignature(body, ""))
	assert.False(t, a.VerifySignature([]byte("tampered"), sig))
}

func TestVerifySignatureNoSecret(t *testing.T) {
	a := NewAdapter("verify-me", "")
	assert.False(t, a.VerifySignature([]byte("body"), "sha256=anything"))
}

func TestParseWebhookText(t *testing.T) {
	a := NewAdapter("verify-me", "secret")

	msgs, err := a.ParseWebhook([]byte(sampleWebhook))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, "whatsapp", m.Platform)
	assert.Equal(t, "wamid.abc123", m.ProviderMessageID)
	assert.Equal(t, "491701234567", m.SenderID)
	assert.Equal(t, "+491701234567", m.PhoneNumber)
	assert.Equal(t, "Anna", m.DisplayName)
	assert.Equal(t, "I'd like a haircut", m.Content)
	assert.Equal(t, "text", m.MessageType)
	assert.Equal(t, int64(1700000000), m.Timestamp.Unix())
}

func TestParseWebhookSkipsNonMessageChanges(t *testing.T) {
	a := NewAdapter("verify-me", "secret")

	body := `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"statuses","value":{}}]}]}`
	msgs, err := a.ParseWebhook([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestParseWebhookMediaTypes(t *testing.T) {
	a := NewAdapter("verify-me", "secret")

	body := `{
	  "entry": [{"changes": [{"field": "messages", "value": {"messages": [
	    {"from": "4917000", "id": "m1", "timestamp": "1700000001", "type": "image", "image": {"id": "media1", "caption": "my hair now"}},
	    {"from": "4917000", "id": "m2", "timestamp": "1700000002", "type": "location", "location": {"latitude": 52.5, "longitude": 13.4}},
	    {"from": "4917000", "id": "m3", "timestamp": "1700000003", "type": "sticker"}
	  ]}}]}]
	}`
	msgs, err := a.ParseWebhook([]byte(body))
	require.NoError(t, err)
	require.Len(t, msgs, 2, "unsupported types are dropped")

	assert.Equal(t, "image", msgs[0].MessageType)
	assert.Equal(t, "my hair now", msgs[0].Content)
	assert.Equal(t, "location", msgs[1].MessageType)
	assert.Contains(t, msgs[1].Content, "52.5")
}

func TestParseWebhookInvalidJSON(t *testing.T) {
	a := NewAdapter("verify-me", "secret")
	_, err := a.ParseWebhook([]byte("not json"))
	assert.Error(t, err)
}

func TestClientSendText(t *testing.T) {
	var got SendRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]string{{"id": "wamid.out"}}})
	}))
	defer srv.Close()

	c := NewClient("token-1", "2002", 0, nil)
	c.SetGraphAPIBase(srv.URL)

	err := c.SendText(context.Background(), "+491701234567", "See you Friday at 14:00")
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "+491701234567", got.To)
	assert.Equal(t, "text", got.Type)
	require.NotNil(t, got.Text)
	assert.Equal(t, "See you Friday at 14:00", got.Text.Body)
}

func TestClientSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "invalid recipient", "code": 131030}})
	}))
	defer srv.Close()

	c := NewClient("token-1", "2002", 0, nil)
	c.SetGraphAPIBase(srv.URL)

	err := c.SendText(context.Background(), "bad", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient")
}

func TestClientSendTemplate(t *testing.T) {
	var got SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]string{{"id": "wamid.tpl"}}})
	}))
	defer srv.Close()

	c := NewClient("token-1", "2002", 0, nil)
	c.SetGraphAPIBase(srv.URL)

	require.NoError(t, c.SendTemplate(context.Background(), "+491701234567", "booking_greeting", "en"))
	assert.Equal(t, "template", got.Type)
	require.NotNil(t, got.Template)
	assert.Equal(t, "booking_greeting", got.Template.Name)
	assert.Equal(t, "en", got.Template.Language.Code)
}
