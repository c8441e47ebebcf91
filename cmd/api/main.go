package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/salonhq/booking-assistant/internal/api/router"
	"github.com/salonhq/booking-assistant/internal/bookings"
	"github.com/salonhq/booking-assistant/internal/channels"
	"github.com/salonhq/booking-assistant/internal/channels/generic"
	"github.com/salonhq/booking-assistant/internal/channels/telegram"
	"github.com/salonhq/booking-assistant/internal/channels/whatsapp"
	appconfig "github.com/salonhq/booking-assistant/internal/config"
	"github.com/salonhq/booking-assistant/internal/conversations"
	"github.com/salonhq/booking-assistant/internal/engine"
	"github.com/salonhq/booking-assistant/internal/observability/metrics"
	"github.com/salonhq/booking-assistant/internal/store"
	"github.com/salonhq/booking-assistant/internal/webhooks"
	"github.com/salonhq/booking-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = redisClient.Close() }()

	m := metrics.New(nil)
	ds := engine.NewPgDatastore(pool)
	cache := engine.NewContextCache(redisClient, cfg.HistoryCacheTTL)

	// Channel adapters and outbound senders.
	waAdapter := whatsapp.NewAdapter(cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret)
	tgAdapter := telegram.NewAdapter(cfg.TelegramWebhookSecret)
	genAdapter := generic.NewAdapter()

	senders := map[string]channels.Sender{
		channels.PlatformGeneric: generic.NewSender(logger),
	}
	var waClient *whatsapp.Client
	if cfg.WhatsAppAccessToken != "" {
		waClient = whatsapp.NewClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppSendRate, logger)
		if cfg.WhatsAppAPIURL != "" {
			waClient.SetGraphAPIBase(cfg.WhatsAppAPIURL)
		}
		senders[channels.PlatformWhatsApp] = waClient
	}
	if cfg.TelegramBotToken != "" {
		tgSender, err := telegram.NewSender(cfg.TelegramBotToken, cfg.TelegramSendRate, logger)
		if err != nil {
			logger.Error("failed to connect telegram bot", "error", err)
			os.Exit(1)
		}
		senders[channels.PlatformTelegram] = tgSender
	}

	llm := engine.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMMaxTokens, float32(cfg.LLMTemperature), m, logger)
	eng := engine.NewEngine(ds, llm, senders, cache, m, logger)

	queue := engine.NewMemoryQueue(cfg.QueueBuffer)
	publisher := engine.NewPublisher(queue, logger)
	worker := engine.NewWorker(eng, queue, cfg.WorkerCount, cfg.EngineCallBudget, logger)
	worker.Start(ctx)

	bookingRepo := bookings.NewPostgresRepository(pool)
	// Staff alerts: log every new booking and, when the client asked for
	// WhatsApp contact, send them the received-confirmation template (template
	// messages are the only way to message outside the 24h service window).
	notify := func(ctx context.Context, b *bookings.Booking) error {
		logger.Info("new booking request",
			"booking_id", b.ID,
			"client_name", b.ClientName,
			"phone", b.Phone,
			"service", b.ServiceDescription,
		)
		if waClient != nil && b.PreferredContactMethod == bookings.ContactWhatsAppMessage {
			if wa := b.EffectiveWhatsApp(); wa != "" {
				if err := waClient.SendTemplate(ctx, wa, "booking_received", cfg.WhatsAppTemplateLang); err != nil {
					logger.Warn("booking template send failed", "booking_id", b.ID, "error", err)
				}
			}
		}
		return nil
	}
	notifier := bookings.NewNotifier(bookingRepo, notify, 0, logger)
	go notifier.Run(ctx)

	convHandler := conversations.NewHandler(conversations.NewPostgresRepository(pool), logger)
	convHandler.ResetHook = eng.InvalidateContext
	bookingHandler := bookings.NewHandler(bookings.NewService(bookingRepo, logger), logger)
	webhookHandler := webhooks.NewHandler(waAdapter, tgAdapter, genAdapter, publisher, m, logger)

	r := router.New(&router.Config{
		Logger:               logger,
		WebhookHandler:       webhookHandler,
		ConversationsHandler: convHandler,
		BookingsHandler:      bookingHandler,
		MetricsHandler:       promhttp.Handler(),
		StaffJWTSecret:       cfg.StaffJWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Let in-flight turns finish before the pool closes.
	worker.Wait()
	logger.Info("server stopped")
}
