package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"orderbot/internal/errs"
	"orderbot/internal/infrastructure/telegram"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts alerts with sendMessage.
type TelegramNotifier struct {
	bot messageSender
}

func NewTelegramNotifier(bot *tgbotapi.BotAPI) *TelegramNotifier {
	return &TelegramNotifier{bot: bot}
}

func (n *TelegramNotifier) Send(ctx context.Context, channelID string, text string) error {
	if err := checkSend(ctx, channelID); err != nil {
		return err
	}
	target, err := telegram.ParseTarget(channelID)
	if err != nil {
		return err
	}
	if _, err := n.bot.Send(target.NewMessage(text)); err != nil {
		return errs.Wrapf(err, "send telegram message to %s", target)
	}
	return nil
}

func (n *TelegramNotifier) Close() error {
	return nil
}
