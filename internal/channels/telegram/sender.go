package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/salonhq/booking-assistant/pkg/logging"
)

// botAPI is the slice of tgbotapi.BotAPI the sender needs.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender delivers replies through the Telegram Bot API. Recipients are chat
// IDs in decimal string form, as produced by the adapter.
type Sender struct {
	bot     botAPI
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewSender connects to the Bot API with the given token. sendRate is
// messages per second; zero or negative disables throttling.
func NewSender(token string, sendRate float64, logger *logging.Logger) (*Sender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect bot: %w", err)
	}
	return newSender(bot, sendRate, logger), nil
}

func newSender(bot botAPI, sendRate float64, logger *logging.Logger) *Sender {
	if logger == nil {
		logger = logging.Default()
	}
	limit := rate.Inf
	if sendRate > 0 {
		limit = rate.Limit(sendRate)
	}
	return &Sender{bot: bot, limiter: rate.NewLimiter(limit, 1), logger: logger}
}

// SendText sends a plain text message to a chat.
func (s *Sender) SendText(ctx context.Context, recipient, text string) error {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", recipient, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: rate limit wait: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	s.logger.Debug("telegram message sent", "chat_id", chatID)
	return nil
}
