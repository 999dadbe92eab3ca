package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the slice of the Telegram API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier pushes operator alerts to a Telegram chat.
type TelegramNotifier struct {
	sender Sender
	chatID int64
	log    zerolog.Logger
}

func NewTelegramNotifier(token string, chatID int64, log zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.Info().Str("account", bot.Self.UserName).Msg("telegram notifier connected")
	return NewTelegramNotifierWithSender(bot, chatID, log), nil
}

func NewTelegramNotifierWithSender(sender Sender, chatID int64, log zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID, log: log}
}

func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, message)
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

// NopNotifier drops notifications. Used when Telegram alerts are not
// configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) error { return nil }
