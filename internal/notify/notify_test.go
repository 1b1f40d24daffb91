package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"lendingdesk/internal/reminder"
)

var sample = reminder.Compose("asha@example.com", "Asha", "Data Structures", "2024-03-15")

func TestNewSMTPSender(t *testing.T) {
	testCases := []struct {
		name    string
		config  SMTPConfig
		wantErr string
		port    int
	}{
		{name: "missing host", config: SMTPConfig{From: "desk@example.com"}, wantErr: "SMTP host is required"},
		{name: "missing from", config: SMTPConfig{Host: "smtp.example.com"}, wantErr: "SMTP from address is required"},
		{name: "default port", config: SMTPConfig{Host: "smtp.example.com", From: "desk@example.com"}, port: 587},
		{name: "explicit port", config: SMTPConfig{Host: "smtp.example.com", Port: 2525, From: "desk@example.com"}, port: 2525},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSMTPSender(tc.config, zap.NewNop())
			if tc.wantErr != "" {
				assert.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.port, s.config.Port)
		})
	}
}

func TestSMTPSender_BuildMessage(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "desk@example.com"}, zap.NewNop())
	require.NoError(t, err)

	m, err := s.buildMessage(sample)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Library Reminder: Please Return Book")
	assert.Contains(t, raw, "asha@example.com")
	assert.Contains(t, raw, "desk@example.com")
	assert.Contains(t, raw, "Hello Asha,")

	_, err = s.buildMessage(reminder.Message{To: "not an address", Subject: "x", Body: "y"})
	assert.Error(t, err)
}

type botSpy struct {
	sent []tgbotapi.Chattable
	err  error
}

func (b *botSpy) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.err != nil {
		return tgbotapi.Message{}, b.err
	}
	b.sent = append(b.sent, c)
	return tgbotapi.Message{MessageID: len(b.sent)}, nil
}

func TestTelegramSender_Send(t *testing.T) {
	bot := &botSpy{}
	s := newTelegramSender(bot, -100123, zap.NewNop())

	require.NoError(t, s.Send(context.Background(), sample))
	require.Len(t, bot.sent, 1)

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-100123), msg.ChatID)
	assert.Equal(t, "To: asha@example.com\nLibrary Reminder: Please Return Book\n\n"+sample.Body, msg.Text)
}

func TestTelegramSender_Failures(t *testing.T) {
	bot := &botSpy{err: errors.New("Forbidden: bot was kicked")}
	s := newTelegramSender(bot, 42, zap.NewNop())

	err := s.Send(context.Background(), sample)
	assert.ErrorContains(t, err, "bot was kicked")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bot.err = nil
	assert.ErrorIs(t, s.Send(ctx, sample), context.Canceled)
	assert.Empty(t, bot.sent)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSender(zap.New(core))

	require.NoError(t, s.Send(context.Background(), sample))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "asha@example.com", logs.All()[0].ContextMap()["to"])
}
