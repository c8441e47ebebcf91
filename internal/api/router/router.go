package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/salonhq/booking-assistant/internal/bookings"
	"github.com/salonhq/booking-assistant/internal/conversations"
	httpmiddleware "github.com/salonhq/booking-assistant/internal/http/middleware"
	"github.com/salonhq/booking-assistant/internal/webhooks"
	"github.com/salonhq/booking-assistant/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger               *logging.Logger
	WebhookHandler       *webhooks.Handler
	ConversationsHandler *conversations.Handler
	BookingsHandler      *bookings.Handler
	MetricsHandler       http.Handler

	// StaffJWTSecret guards the staff API when non-empty.
	StaffJWTSecret string
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Webhooks are public; each handler does its own platform verification.
	r.Route("/api/webhooks", func(r chi.Router) {
		r.Get("/whatsapp", cfg.WebhookHandler.VerifyWhatsApp)
		r.Post("/whatsapp", cfg.WebhookHandler.ReceiveWhatsApp)
		r.Post("/telegram", cfg.WebhookHandler.ReceiveTelegram)
		r.Post("/message", cfg.WebhookHandler.ReceiveGeneric)
	})

	// Staff API.
	r.Group(func(staff chi.Router) {
		staff.Use(httpmiddleware.StaffJWT(cfg.StaffJWTSecret))

		staff.Route("/api/conversations", func(r chi.Router) {
			r.Get("/", cfg.ConversationsHandler.List)
			r.Get("/phone/{phone}", cfg.ConversationsHandler.GetByPhone)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.ConversationsHandler.Get)
				r.Delete("/", cfg.ConversationsHandler.Delete)
				r.Get("/messages", cfg.ConversationsHandler.Messages)
				r.Get("/history", cfg.ConversationsHandler.History)
				r.Post("/reset", cfg.ConversationsHandler.Reset)
			})
		})

		staff.Route("/api/bookings", func(r chi.Router) {
			r.Get("/", cfg.BookingsHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.BookingsHandler.Get)
				r.Put("/", cfg.BookingsHandler.Update)
				r.Delete("/", cfg.BookingsHandler.Delete)
				r.Put("/status", cfg.BookingsHandler.SetStatus)
			})
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
