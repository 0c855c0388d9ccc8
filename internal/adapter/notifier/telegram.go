package notifier

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram posts schedule outcomes to one chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(botToken, chatID string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegram(bot, chatID)
}

// NewTelegramWithEndpoint talks to a Bot API server other than the public
// one, e.g. a self-hosted telegram-bot-api.
func NewTelegramWithEndpoint(botToken, chatID, endpoint string, client tgbotapi.HTTPClient) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return newTelegram(bot, chatID)
}

func newTelegram(bot *tgbotapi.BotAPI, chatID string) (*Telegram, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}
	return &Telegram{bot: bot, chatID: id}, nil
}

func (t *Telegram) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, message)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}
