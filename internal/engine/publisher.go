package engine

import (
	"context"
	"fmt"

	"github.com/salonhq/booking-assistant/internal/channels"
	"github.com/salonhq/booking-assistant/pkg/logging"
)

// Publisher enqueues inbound messages for asynchronous processing. Webhook
// handlers call it and return 200 without waiting for the model.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a Publisher over the given queue.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("engine: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// EnqueueInbound publishes one inbound message.
func (p *Publisher) EnqueueInbound(ctx context.Context, msg channels.InboundMessage) error {
	body, err := encodePayload(queuePayload{Inbound: msg})
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("engine: enqueue inbound: %w", err)
	}
	p.logger.Debug("inbound enqueued",
		"platform", msg.Platform,
		"sender_id", msg.SenderID,
		"provider_message_id", msg.ProviderMessageID,
	)
	return nil
}
