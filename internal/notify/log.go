package notify

import (
	"context"

	"go.uber.org/zap"

	"lendingdesk/internal/reminder"
)

// LogSender writes reminders to the logger instead of delivering them
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg reminder.Message) error {
	s.logger.Info("Reminder",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
