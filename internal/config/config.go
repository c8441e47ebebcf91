package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	// Engine
	OpenAIAPIKey     string
	OpenAIModel      string
	LLMMaxTokens     int
	LLMTemperature   float64
	WorkerCount      int
	QueueBuffer      int
	HistoryCacheTTL  time.Duration
	EngineCallBudget time.Duration

	// WhatsApp Cloud API
	WhatsAppAPIURL        string
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string
	WhatsAppTemplateLang  string
	WhatsAppSendRate      float64

	// Telegram Bot API
	TelegramBotToken      string
	TelegramWebhookSecret string
	TelegramSendRate      float64

	// Staff API auth (optional; staff routes are public when unset)
	StaffJWTSecret string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o"),
		LLMMaxTokens:     getEnvAsInt("LLM_MAX_TOKENS", 1000),
		LLMTemperature:   getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		WorkerCount:      getEnvAsInt("WORKER_COUNT", 2),
		QueueBuffer:      getEnvAsInt("QUEUE_BUFFER", 128),
		HistoryCacheTTL:  getEnvAsDuration("HISTORY_CACHE_TTL", 24*time.Hour),
		EngineCallBudget: getEnvAsDuration("ENGINE_CALL_BUDGET", 30*time.Second),

		WhatsAppAPIURL:        getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v19.0"),
		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppTemplateLang:  getEnv("WHATSAPP_TEMPLATE_LANGUAGE_CODE", "en"),
		WhatsAppSendRate:      getEnvAsFloat("WHATSAPP_SEND_RATE", 10),

		TelegramBotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		TelegramSendRate:      getEnvAsFloat("TELEGRAM_SEND_RATE", 25),

		StaffJWTSecret: getEnv("STAFF_JWT_SECRET", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
