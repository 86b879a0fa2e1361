package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"debtwise/internal/logger"
)

// TelegramNotifier sends completion notifications to a Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a TelegramNotifier using the given bot token
// and target chat ID.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Get().Infow("telegram notifier initialized", "bot_username", bot.Self.UserName)
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// NotifyPlanCompleted sends a congratulation message to the configured chat.
func (n *TelegramNotifier) NotifyPlanCompleted(_ context.Context, userEmail, planName string) error {
	text := fmt.Sprintf("🎉 %s is debt free! Plan %q has been fully paid off.", userEmail, planName)
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}
