package bookings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/salonhq/booking-assistant/pkg/logging"
)

// Handler exposes the staff-facing booking endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("bookings: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// List handles GET /api/bookings requests with optional status/phone filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Status: Status(r.URL.Query().Get("status")),
		Phone:  r.URL.Query().Get("phone"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		h.writeValidationError(w, &ValidationError{Field: "status", Reason: "unknown status value"})
		return
	}
	items, err := h.service.Repo().List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err)
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*Booking{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /api/bookings/{id} requests.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	b, err := h.service.Repo().GetByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Update handles PUT /api/bookings/{id} requests with a partial field set.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var fields Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	b, err := h.service.UpdateFields(r.Context(), id, fields)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type statusRequest struct {
	Status Status `json:"status"`
}

// SetStatus handles PUT /api/bookings/{id}/status requests.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	b, err := h.service.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Delete handles DELETE /api/bookings/{id} requests.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Repo().Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	h.logger.Info("booking deleted", "booking_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Booking deleted"})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		h.writeValidationError(w, vErr)
	case errors.Is(err, ErrBookingNotFound):
		http.Error(w, "Booking not found", http.StatusNotFound)
	default:
		h.logger.Error("booking request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeValidationError(w http.ResponseWriter, vErr *ValidationError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": "validation failed",
		"field": vErr.Field,
		"detail": vErr.Reason,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
