package notifier

import (
	"context"
	"fmt"
	"strings"

	"tradebot/internal/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSink доставляет уведомления оператору в Telegram.
//
// Конфигурация:
// - token: токен бота (@BotFather)
// - chatID: ID чата оператора
type TelegramSink struct {
	bot    *tgbot.BotAPI
	chatID int64
}

// NewTelegramSink создает новый TelegramSink.
// Возвращает ошибку если токен невалиден или Telegram API недоступен.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	return &TelegramSink{
		bot:    bot,
		chatID: chatID,
	}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Deliver(_ context.Context, notif *models.Notification) error {
	msg := tgbot.NewMessage(s.chatID, formatMessage(notif))
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// formatMessage собирает текст сообщения для оператора.
// Текст уведомлений уже содержит emoji-префикс, добавляем только символ.
func formatMessage(notif *models.Notification) string {
	var b strings.Builder
	b.WriteString(notif.Message)
	if notif.Symbol != "" && !strings.Contains(notif.Message, notif.Symbol) {
		b.WriteString(fmt.Sprintf(" [%s]", notif.Symbol))
	}
	return b.String()
}
