package whatsapp

// WebhookEvent is the top-level structure received from the Cloud API webhook.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry represents a single entry in the webhook payload.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one change notification inside an entry.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the messages and contact metadata for a change.
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
}

// Metadata identifies the business number the event belongs to.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact carries the sender's profile.
type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

// Profile is the sender's display profile.
type Profile struct {
	Name string `json:"name"`
}

// Message is a single inbound message.
type Message struct {
	From      string    `json:"from"`
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *Text     `json:"text,omitempty"`
	Image     *Media    `json:"image,omitempty"`
	Document  *Media    `json:"document,omitempty"`
	Location  *Location `json:"location,omitempty"`
}

// Text is the text message body.
type Text struct {
	Body string `json:"body"`
}

// Media carries the id and caption of an image or document. Only the type is
// recorded downstream; media content itself is not fetched.
type Media struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

// Location is a shared location pin.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// SendRequest is the payload sent to the Graph API to send a message.
type SendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *SendText     `json:"text,omitempty"`
	Template         *SendTemplate `json:"template,omitempty"`
}

// SendText is the outbound text body.
type SendText struct {
	Body string `json:"body"`
}

// SendTemplate is an outbound template message (used for greetings).
type SendTemplate struct {
	Name     string       `json:"name"`
	Language TemplateLang `json:"language"`
}

// TemplateLang selects the template language.
type TemplateLang struct {
	Code string `json:"code"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}
