package notify

import (
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var errTelegramBotRequired = errors.New("telegram notifier requires a bot token")

type Config struct {
	Driver        string
	AMQPURL       string
	AMQPExchange  string
	NATSURL       string
	SubjectPrefix string
}

// Open builds the driver named by cfg.Driver. bot is required only for the
// telegram driver.
func Open(cfg Config, bot *tgbotapi.BotAPI) (Notifier, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", DriverTelegram:
		if bot == nil {
			return nil, errTelegramBotRequired
		}
		return NewTelegramNotifier(bot), nil
	case DriverAMQP:
		n, err := DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		return n, nil
	case DriverNATS:
		n, err := ConnectNATS(cfg.NATSURL, cfg.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		return n, nil
	case DriverLog:
		return LogNotifier{}, nil
	default:
		return nil, unknownDriver(driver)
	}
}
