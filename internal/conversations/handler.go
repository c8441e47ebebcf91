package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/salonhq/booking-assistant/pkg/logging"
)

// Handler exposes the staff-facing conversation endpoints.
type Handler struct {
	store  Store
	logger *logging.Logger

	// ResetHook runs after a conversation is reset or deleted, so the
	// engine can drop cached dialogue context. Optional.
	ResetHook func(ctx context.Context, conversationID string)
}

// NewHandler creates a conversations handler.
func NewHandler(store Store, logger *logging.Logger) *Handler {
	if store == nil {
		panic("conversations: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /api/conversations requests.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active_only"))
	items, err := h.store.List(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		http.Error(w, "failed to list conversations", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*Conversation{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /api/conversations/{id} requests.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	c, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetByPhone handles GET /api/conversations/phone/{phone} requests.
func (h *Handler) GetByPhone(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	if phone == "" {
		http.Error(w, "missing phone", http.StatusBadRequest)
		return
	}
	c, err := h.store.GetByPhone(r.Context(), phone)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Messages handles GET /api/conversations/{id}/messages requests.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if _, err := h.store.GetByID(r.Context(), id); err != nil {
		h.respondLookupError(w, err)
		return
	}

	limit := 100
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	msgs, err := h.store.Messages(r.Context(), id, limit, offset)
	if err != nil {
		h.logger.Error("failed to list messages", "error", err, "conversation_id", id)
		http.Error(w, "failed to list messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// History handles GET /api/conversations/{id}/history requests.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if _, err := h.store.GetByID(r.Context(), id); err != nil {
		h.respondLookupError(w, err)
		return
	}
	msgs, err := h.store.History(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load history", "error", err, "conversation_id", id)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// Reset handles POST /api/conversations/{id}/reset requests. The conversation
// returns to greeting; messages and bookings are untouched.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.store.Reset(r.Context(), id); err != nil {
		h.respondLookupError(w, err)
		return
	}
	if h.ResetHook != nil {
		h.ResetHook(r.Context(), id.String())
	}
	h.logger.Info("conversation reset", "conversation_id", id)
	c, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/conversations/{id} requests.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.respondLookupError(w, err)
		return
	}
	if h.ResetHook != nil {
		h.ResetHook(r.Context(), id.String())
	}
	h.logger.Info("conversation deleted", "conversation_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Conversation deleted"})
}

func (h *Handler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrConversationNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	h.logger.Error("conversation lookup failed", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
