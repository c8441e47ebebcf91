// Package webhooks terminates inbound platform callbacks. Handlers verify
// authenticity, normalize the payload, enqueue it, and acknowledge fast so
// platform retry timers never see model latency.
package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/salonhq/booking-assistant/internal/channels"
	"github.com/salonhq/booking-assistant/internal/channels/generic"
	"github.com/salonhq/booking-assistant/internal/channels/telegram"
	"github.com/salonhq/booking-assistant/internal/channels/whatsapp"
	"github.com/salonhq/booking-assistant/internal/engine"
	"github.com/salonhq/booking-assistant/internal/observability/metrics"
	"github.com/salonhq/booking-assistant/pkg/logging"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Handler holds the webhook endpoints for every platform.
type Handler struct {
	whatsapp  *whatsapp.Adapter
	telegram  *telegram.Adapter
	generic   *generic.Adapter
	publisher *engine.Publisher
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewHandler creates the webhook handler. metrics may be nil.
func NewHandler(wa *whatsapp.Adapter, tg *telegram.Adapter, gen *generic.Adapter, publisher *engine.Publisher, m *metrics.Metrics, logger *logging.Logger) *Handler {
	if wa == nil || tg == nil || gen == nil {
		panic("webhooks: all adapters required")
	}
	if publisher == nil {
		panic("webhooks: publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		whatsapp:  wa,
		telegram:  tg,
		generic:   gen,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// VerifyWhatsApp handles Meta's GET subscription handshake.
func (h *Handler) VerifyWhatsApp(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := h.whatsapp.VerifyChallenge(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if !ok {
		h.logger.Warn("whatsapp verification rejected", "mode", q.Get("hub.mode"))
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// ReceiveWhatsApp handles Cloud API message deliveries.
func (h *Handler) ReceiveWhatsApp(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !h.whatsapp.VerifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		h.metrics.ObserveInbound(channels.PlatformWhatsApp, "rejected")
		h.logger.Warn("whatsapp signature verification failed")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	msgs, err := h.whatsapp.ParseWebhook(body)
	if err != nil {
		h.metrics.ObserveInbound(channels.PlatformWhatsApp, "malformed")
		h.logger.Warn("whatsapp webhook parse failed", "error", err)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	h.enqueueAll(w, r, channels.PlatformWhatsApp, msgs)
}

// ReceiveTelegram handles Bot API webhook updates.
func (h *Handler) ReceiveTelegram(w http.ResponseWriter, r *http.Request) {
	if !h.telegram.VerifySecret(r.Header.Get("X-Telegram-Bot-Api-Secret-Token")) {
		h.metrics.ObserveInbound(channels.PlatformTelegram, "rejected")
		h.logger.Warn("telegram secret token mismatch")
		http.Error(w, "invalid secret token", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	msgs, err := h.telegram.ParseWebhook(body)
	if err != nil {
		h.metrics.ObserveInbound(channels.PlatformTelegram, "malformed")
		h.logger.Warn("telegram webhook parse failed", "error", err)
		// Telegram retries on non-2xx; a permanently malformed update would
		// retry forever, so ack it and move on.
		writeAck(w)
		return
	}

	h.enqueueAll(w, r, channels.PlatformTelegram, msgs)
}

// ReceiveGeneric handles plain JSON webhooks from unlisted platforms.
func (h *Handler) ReceiveGeneric(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	msgs, err := h.generic.ParseWebhook(body)
	if err != nil {
		h.metrics.ObserveInbound(channels.PlatformGeneric, "malformed")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.enqueueAll(w, r, channels.PlatformGeneric, msgs)
}

func (h *Handler) enqueueAll(w http.ResponseWriter, r *http.Request, platform string, msgs []channels.InboundMessage) {
	for _, msg := range msgs {
		if err := h.publisher.EnqueueInbound(r.Context(), msg); err != nil {
			h.metrics.ObserveInbound(platform, "enqueue_failed")
			h.logger.Error("failed to enqueue inbound message", "platform", platform, "error", err)
			http.Error(w, "failed to accept message", http.StatusInternalServerError)
			return
		}
	}
	h.metrics.ObserveInbound(platform, "accepted")
	writeAck(w)
}

func writeAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "received"})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
