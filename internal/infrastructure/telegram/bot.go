// Package telegram builds Bot API clients shared by the channel source and
// the alert notifier.
package telegram

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultTimeout covers a long-poll getUpdates call plus transfer time.
const DefaultTimeout = 70 * time.Second

// NewBot returns a client without calling getMe, so startup does not need
// the network. endpoint is a printf pattern taking token and method; empty
// means the public Bot API.
func NewBot(token string, client *http.Client, endpoint string) (*tgbotapi.BotAPI, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot := &tgbotapi.BotAPI{
		Token:  token,
		Client: client,
		Buffer: 100,
	}
	bot.SetAPIEndpoint(endpoint)
	return bot, nil
}

// Target is a chat addressed either by numeric id or by @username.
type Target struct {
	ChatID   int64
	Username string
}

// ParseTarget accepts "-100123", "@supply_orders" or "supply_orders".
func ParseTarget(value string) (Target, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Target{}, errors.New("telegram chat is required")
	}
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		return Target{ChatID: id}, nil
	}
	return Target{Username: "@" + strings.TrimPrefix(value, "@")}, nil
}

// Matches reports whether chat is the target chat.
func (t Target) Matches(chat *tgbotapi.Chat) bool {
	if chat == nil {
		return false
	}
	if t.Username != "" {
		return strings.EqualFold(strings.TrimPrefix(t.Username, "@"), chat.UserName)
	}
	return chat.ID == t.ChatID
}

// NewMessage addresses a text message to the target.
func (t Target) NewMessage(text string) tgbotapi.MessageConfig {
	if t.Username != "" {
		return tgbotapi.NewMessageToChannel(t.Username, text)
	}
	return tgbotapi.NewMessage(t.ChatID, text)
}

func (t Target) String() string {
	if t.Username != "" {
		return t.Username
	}
	return strconv.FormatInt(t.ChatID, 10)
}
