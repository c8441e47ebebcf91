package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/salonhq/booking-assistant/internal/bookings"
	"github.com/salonhq/booking-assistant/internal/channels"
	"github.com/salonhq/booking-assistant/internal/conversations"
	"github.com/salonhq/booking-assistant/internal/observability/metrics"
	"github.com/salonhq/booking-assistant/pkg/logging"
)

var engineTracer = otel.Tracer("salon.internal.engine")

// errDuplicateDelivery aborts the turn transaction when the provider message
// ID was already recorded. It never surfaces to callers.
var errDuplicateDelivery = errors.New("engine: duplicate delivery")

const degradedReply = "Sorry, I'm having trouble right now. Please try again in a moment, or call the salon directly."

// Engine processes one inbound message into one assistant turn: it appends
// the message, asks the model for a reply plus extracted fields, validates
// the proposed state transition, finalizes a booking when the dialogue
// completes, and sends the reply back out. All per-turn writes happen in one
// transaction.
type Engine struct {
	ds      Datastore
	llm     LLMClient
	senders map[string]channels.Sender
	cache   *ContextCache
	locks   *keyedMutex
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewEngine constructs the engine. cache and m may be nil.
func NewEngine(ds Datastore, llm LLMClient, senders map[string]channels.Sender, cache *ContextCache, m *metrics.Metrics, logger *logging.Logger) *Engine {
	if ds == nil {
		panic("engine: datastore required")
	}
	if llm == nil {
		panic("engine: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if senders == nil {
		senders = map[string]channels.Sender{}
	}
	return &Engine{
		ds:      ds,
		llm:     llm,
		senders: senders,
		cache:   cache,
		locks:   newKeyedMutex(),
		metrics: m,
		logger:  logger,
	}
}

// InvalidateContext drops any cached draft fields for a conversation. The
// staff reset endpoint calls this so a restarted dialogue begins clean.
func (e *Engine) InvalidateContext(ctx context.Context, conversationID string) {
	if err := e.cache.Invalidate(ctx, conversationID); err != nil {
		e.logger.Warn("failed to invalidate conversation context", "conversation_id", conversationID, "error", err)
	}
}

// ProcessInbound runs one full turn for an inbound message. Deliveries for
// the same user are serialized; duplicates are dropped without a reply.
func (e *Engine) ProcessInbound(ctx context.Context, msg channels.InboundMessage) error {
	started := time.Now()
	ctx, span := engineTracer.Start(ctx, "engine.process_inbound")
	defer span.End()
	span.SetAttributes(
		attribute.String("salon.platform", msg.Platform),
		attribute.String("salon.sender_id", msg.SenderID),
	)

	if msg.SenderID == "" && msg.PhoneNumber == "" {
		return fmt.Errorf("engine: inbound message has no sender identity")
	}

	unlock := e.locks.Lock(msg.Platform + "|" + msg.SenderID)
	defer unlock()

	conv, created, err := e.ds.Conversations().FindOrCreate(ctx, &conversations.Conversation{
		PhoneNumber:    msg.PhoneNumber,
		Platform:       conversations.Platform(msg.Platform),
		PlatformUserID: msg.SenderID,
		ChatID:         msg.ChatID,
		DisplayName:    msg.DisplayName,
		State:          conversations.StateGreeting,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("engine: find conversation: %w", err)
	}
	span.SetAttributes(attribute.String("salon.conversation_id", conv.ID.String()))

	// Cheap duplicate pre-check so retried deliveries don't burn a model
	// call. The transactional MarkProcessed below is the authoritative guard.
	if !created {
		exists, err := e.ds.Conversations().InboundExists(ctx, conv.ID, msg.SenderID, msg.Content, msg.Timestamp)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("engine: duplicate pre-check: %w", err)
		}
		if exists {
			e.logger.Info("dropping duplicate inbound message",
				"conversation_id", conv.ID, "provider_message_id", msg.ProviderMessageID)
			e.metrics.ObserveTurn(msg.Platform, time.Since(started), "duplicate")
			return nil
		}
	}

	history, err := e.ds.Conversations().History(ctx, conv.ID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("engine: load history: %w", err)
	}

	known, err := e.cache.Load(ctx, conv.ID.String())
	if err != nil {
		// Cache trouble degrades to field re-extraction, never fails the turn.
		e.logger.Warn("context cache unavailable", "conversation_id", conv.ID, "error", err)
		known = bookings.Fields{}
	}

	userMsg := &conversations.Message{
		ConversationID: conv.ID,
		Content:        msg.Content,
		MessageType:    conversations.MessageType(msg.MessageType),
		SenderID:       msg.SenderID,
		Platform:       conv.Platform,
		Timestamp:      msg.Timestamp,
	}
	prompt := buildPrompt(conv, append(history, userMsg), known)

	result, degraded := e.completeWithRetry(ctx, prompt)

	merged := known.Merge(result.Fields)
	newState := e.resolveState(conv, msg.Content, result.ProposedState, merged, degraded)
	finalize := newState == conversations.StateCompleted && conv.State != conversations.StateCompleted

	reply := strings.TrimSpace(result.Reply)
	if reply == "" {
		reply = fallbackReply(newState, merged)
	}

	botMsg := &conversations.Message{
		ConversationID: conv.ID,
		Content:        reply,
		MessageType:    conversations.MessageTypeText,
		SenderID:       "bot",
		IsFromBot:      true,
		IsComplete:     newState == conversations.StateCompleted,
		Platform:       conv.Platform,
		Timestamp:      time.Now().UTC(),
	}
	userMsg.IsComplete = botMsg.IsComplete

	var booking *bookings.Booking
	err = e.ds.InTx(ctx, func(tx Datastore) error {
		if msg.ProviderMessageID != "" {
			fresh, err := tx.Processed().MarkProcessed(ctx, msg.Platform, msg.ProviderMessageID)
			if err != nil {
				return err
			}
			if !fresh {
				return errDuplicateDelivery
			}
		}
		if err := tx.Conversations().AppendMessage(ctx, userMsg); err != nil {
			return err
		}
		if finalize {
			svc := bookings.NewService(tx.Bookings(), e.logger)
			fields := withChannelDefaults(merged, msg)
			b, err := svc.CreateOrUpdate(ctx, conv.ID, fields)
			if err != nil {
				return err
			}
			booking = b
		}
		if err := tx.Conversations().AppendMessage(ctx, botMsg); err != nil {
			return err
		}
		return tx.Conversations().UpdateState(ctx, conv.ID, newState, newState == conversations.StateCompleted)
	})
	if err != nil {
		if errors.Is(err, errDuplicateDelivery) {
			e.logger.Info("dropping duplicate inbound message",
				"conversation_id", conv.ID, "provider_message_id", msg.ProviderMessageID)
			e.metrics.ObserveTurn(msg.Platform, time.Since(started), "duplicate")
			return nil
		}
		span.RecordError(err)
		e.metrics.ObserveTurn(msg.Platform, time.Since(started), "error")
		return fmt.Errorf("engine: commit turn: %w", err)
	}

	if newState == conversations.StateCompleted {
		e.InvalidateContext(ctx, conv.ID.String())
	} else if err := e.cache.Save(ctx, conv.ID.String(), merged); err != nil {
		e.logger.Warn("failed to cache conversation context", "conversation_id", conv.ID, "error", err)
	}

	if booking != nil {
		e.metrics.BookingCreated(msg.Platform)
		e.logger.Info("booking finalized",
			"conversation_id", conv.ID, "booking_id", booking.ID, "platform", msg.Platform)
	}

	e.sendReply(ctx, conv, msg, reply)

	status := "ok"
	if degraded {
		status = "degraded"
	}
	e.metrics.ObserveTurn(msg.Platform, time.Since(started), status)
	e.logger.Info("turn processed",
		"conversation_id", conv.ID,
		"platform", msg.Platform,
		"state", newState,
		"degraded", degraded,
	)
	return nil
}

// completeWithRetry calls the model, retrying once. When both attempts fail
// it returns a canned reply and flags the turn as degraded; the conversation
// state stays put so the user can simply try again.
func (e *Engine) completeWithRetry(ctx context.Context, prompt Prompt) (*TurnResult, bool) {
	result, err := e.llm.CompleteTurn(ctx, prompt)
	if err == nil {
		return result, false
	}
	e.logger.Warn("model call failed, retrying", "error", err)

	result, err = e.llm.CompleteTurn(ctx, prompt)
	if err == nil {
		return result, false
	}
	e.logger.Error("model call failed twice, sending degraded reply", "error", err)
	return &TurnResult{Reply: degradedReply, ProposedState: prompt.State}, true
}

// resolveState decides the post-turn state. The model's proposal is advisory;
// the transition table, the confirmation keywords, and the required-field
// check all outrank it.
func (e *Engine) resolveState(conv *conversations.Conversation, content string, proposed conversations.State, fields bookings.Fields, degraded bool) conversations.State {
	if degraded {
		return conv.State
	}

	if conv.State == conversations.StateConfirming {
		if confirmed, detected := detectConfirmation(content); detected {
			if confirmed {
				proposed = conversations.StateCompleted
			} else {
				proposed = conversations.StateCollectingInfo
			}
		}
	}

	next := nextState(conv.State, proposed)

	// The first turn always leaves greeting.
	if conv.State == conversations.StateGreeting && next == conversations.StateGreeting {
		next = conversations.StateCollectingInfo
	}
	// Never finalize or summarize with required fields missing.
	if (next == conversations.StateCompleted || next == conversations.StateConfirming) && !fields.HasRequired() {
		next = conversations.StateCollectingInfo
	}
	return next
}

// withChannelDefaults fills field gaps from channel identity before the
// booking is finalized: the channel phone number and, for WhatsApp
// conversations, the reuse flag.
func withChannelDefaults(f bookings.Fields, msg channels.InboundMessage) bookings.Fields {
	if f.Phone == "" && msg.PhoneNumber != "" {
		f.Phone = msg.PhoneNumber
	}
	if msg.Platform == channels.PlatformWhatsApp && f.UsePhoneForWhatsApp == nil && f.WhatsApp == "" {
		yes := true
		f.UsePhoneForWhatsApp = &yes
	}
	if f.ClientName == "" && msg.DisplayName != "" {
		f.ClientName = msg.DisplayName
	}
	return f
}

func fallbackReply(state conversations.State, fields bookings.Fields) string {
	switch state {
	case conversations.StateCompleted:
		return "Your booking request is in! We'll be in touch shortly to confirm."
	case conversations.StateConfirming:
		return "Let me make sure I have everything right. Shall I go ahead and book it?"
	default:
		missing := fields.Missing()
		if len(missing) == 0 {
			return "Got it! Anything else I should note for your appointment?"
		}
		return "Thanks! Could you also tell me your " + strings.ReplaceAll(missing[0], "_", " ") + "?"
	}
}

func (e *Engine) sendReply(ctx context.Context, conv *conversations.Conversation, msg channels.InboundMessage, reply string) {
	sender, ok := e.senders[msg.Platform]
	if !ok {
		e.logger.Warn("no sender for platform", "platform", msg.Platform)
		return
	}
	recipient := conv.PhoneNumber
	if msg.Platform == channels.PlatformTelegram {
		recipient = conv.ChatID
	}
	if recipient == "" {
		recipient = msg.SenderID
	}

	err := sender.SendText(ctx, recipient, reply)
	e.metrics.ObserveOutbound(msg.Platform, err)
	if err != nil {
		// The turn is already committed; delivery failure is logged, not fatal.
		e.logger.Error("failed to send reply", "platform", msg.Platform, "conversation_id", conv.ID, "error", err)
	}
}
