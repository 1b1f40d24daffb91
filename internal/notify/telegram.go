package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"lendingdesk/internal/reminder"
)

type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts reminders to a staff chat
type TelegramSender struct {
	api    botClient
	chatID int64
	logger *zap.Logger
}

// NewTelegramSender creates a sender posting to chatID
func NewTelegramSender(token string, chatID int64, logger *zap.Logger) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Telegram reminder bot created", zap.String("bot_username", api.Self.UserName))
	return newTelegramSender(api, chatID, logger), nil
}

func newTelegramSender(api botClient, chatID int64, logger *zap.Logger) *TelegramSender {
	return &TelegramSender{api: api, chatID: chatID, logger: logger}
}

func formatTelegram(msg reminder.Message) string {
	return fmt.Sprintf("To: %s\n%s\n\n%s", msg.To, msg.Subject, msg.Body)
}

// Send posts msg to the configured chat. The bot API has no context support,
// so ctx is only checked before sending.
func (s *TelegramSender) Send(ctx context.Context, msg reminder.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.api.Send(tgbotapi.NewMessage(s.chatID, formatTelegram(msg)))
	if err != nil {
		s.logger.Error("Failed to send Telegram reminder",
			zap.Int64("chat_id", s.chatID),
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
