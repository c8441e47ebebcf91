package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/salonhq/booking-assistant/pkg/logging"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v18.0"
	defaultHTTPTimeout  = 10 * time.Second
)

// Client sends messages through the WhatsApp Cloud API. All sends share one
// rate limiter so bursts of worker replies stay under the Meta send quota.
type Client struct {
	accessToken   string
	phoneNumberID string
	graphAPIBase  string
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        *logging.Logger
}

// NewClient creates a Cloud API client. sendRate is messages per second; zero
// or negative disables throttling.
func NewClient(accessToken, phoneNumberID string, sendRate float64, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	limit := rate.Inf
	if sendRate > 0 {
		limit = rate.Limit(sendRate)
	}
	return &Client{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		graphAPIBase:  defaultGraphAPIBase,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
		limiter:       rate.NewLimiter(limit, 1),
		logger:        logger,
	}
}

// SetGraphAPIBase overrides the Graph API base URL (useful for testing).
func (c *Client) SetGraphAPIBase(base string) {
	c.graphAPIBase = base
}

// SendText sends a plain text message to the given phone number.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	req := SendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &SendText{Body: text},
	}
	return c.send(ctx, req)
}

// SendTemplate sends a pre-approved template message. Meta requires templates
// for business-initiated messages outside the 24h customer service window.
func (c *Client) SendTemplate(ctx context.Context, to, templateName, langCode string) error {
	req := SendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "template",
		Template: &SendTemplate{
			Name:     templateName,
			Language: TemplateLang{Code: langCode},
		},
	}
	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, req SendRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("whatsapp: rate limit wait: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.graphAPIBase, c.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("whatsapp: read response: %w", err)
	}

	var sendResp sendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return fmt.Errorf("whatsapp: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || sendResp.Error != nil {
		msg := "unknown error"
		if sendResp.Error != nil {
			msg = sendResp.Error.Message
		}
		return fmt.Errorf("whatsapp: api error (status %d): %s", resp.StatusCode, msg)
	}

	c.logger.Debug("whatsapp message sent", "to", req.To, "type", req.Type)
	return nil
}
