package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/salonhq/booking-assistant/internal/bookings"
	"github.com/salonhq/booking-assistant/internal/conversations"
	"github.com/salonhq/booking-assistant/internal/observability/metrics"
	"github.com/salonhq/booking-assistant/pkg/logging"
)

var llmTracer = otel.Tracer("salon.internal.engine.llm")

// chatClient is the slice of the OpenAI SDK the engine needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements LLMClient with OpenAI chat completions plus a
// function call that extracts booking fields on every turn.
type OpenAIClient struct {
	client      chatClient
	model       string
	maxTokens   int
	temperature float32
	metrics     *metrics.Metrics
	logger      *logging.Logger
}

// NewOpenAIClient builds an LLM client from an API key.
func NewOpenAIClient(apiKey, model string, maxTokens int, temperature float32, m *metrics.Metrics, logger *logging.Logger) *OpenAIClient {
	if apiKey == "" {
		panic("engine: openai api key required")
	}
	return newOpenAIClient(openai.NewClient(apiKey), model, maxTokens, temperature, m, logger)
}

func newOpenAIClient(client chatClient, model string, maxTokens int, temperature float32, m *metrics.Metrics, logger *logging.Logger) *OpenAIClient {
	if client == nil {
		panic("engine: chat client required")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxTokens <= 0 {
		maxTokens = 400
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAIClient{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		metrics:     m,
		logger:      logger,
	}
}

// collectBookingInfoSchema is the function-call parameter schema. The model
// reports every field gathered so far plus the state it wants to move to.
const collectBookingInfoSchema = `{
  "type": "object",
  "properties": {
    "client_name": {"type": "string", "description": "The client's full name"},
    "phone": {"type": "string", "description": "Contact phone number"},
    "use_phone_for_whatsapp": {"type": "boolean", "description": "True when the client said their WhatsApp number is the same as their phone"},
    "whatsapp": {"type": "string", "description": "Separate WhatsApp number, only when it differs from phone"},
    "preferred_contact_method": {"type": "string", "enum": ["phone_call", "whatsapp_message", "telegram_message"]},
    "preferred_contact_time": {"type": "string", "enum": ["morning", "afternoon", "evening"]},
    "service_description": {"type": "string", "description": "The service the client wants"},
    "booking_date": {"type": "string", "description": "Desired date, YYYY-MM-DD"},
    "booking_time": {"type": "string", "description": "Desired time, HH:MM 24h"},
    "time_of_day": {"type": "string", "enum": ["morning", "afternoon", "evening"]},
    "additional_notes": {"type": "string"},
    "next_state": {"type": "string", "enum": ["greeting", "collecting_info", "confirming", "completed"]}
  },
  "required": ["next_state"]
}`

type collectedArgs struct {
	bookings.Fields
	NextState string `json:"next_state"`
}

// CompleteTurn runs one chat completion and decodes the function call.
func (c *OpenAIClient) CompleteTurn(ctx context.Context, prompt Prompt) (*TurnResult, error) {
	ctx, span := llmTracer.Start(ctx, "engine.llm_turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("salon.model", c.model),
		attribute.String("salon.state", string(prompt.State)),
	)

	messages := make([]openai.ChatCompletionMessage, 0, len(prompt.History)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: prompt.System,
	})
	for _, m := range prompt.History {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "collect_booking_info",
				Description: "Report every booking detail collected so far in the conversation and the dialogue state to move to.",
				Parameters:  json.RawMessage(collectBookingInfoSchema),
			},
		}},
	})
	c.metrics.ObserveLLM(c.model, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("engine: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("engine: chat completion returned no choices")
	}

	choice := resp.Choices[0].Message
	result := &TurnResult{Reply: choice.Content}

	for _, call := range choice.ToolCalls {
		if call.Function.Name != "collect_booking_info" {
			continue
		}
		var args collectedArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			// A malformed call is not fatal; the reply text still stands.
			c.logger.Warn("discarding malformed function call", "error", err)
			continue
		}
		result.Fields = args.Fields
		result.ProposedState = conversations.State(args.NextState)
	}

	return result, nil
}
