// Package notify delivers alert texts through the configured driver.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"orderbot/internal/errs"
	"orderbot/internal/ports"
)

const (
	DriverTelegram = "telegram"
	DriverAMQP     = "amqp"
	DriverNATS     = "nats"
	DriverLog      = "log"
)

// Notifier is a ports.Notifier that owns a connection.
type Notifier interface {
	ports.Notifier
	Close() error
}

// Envelope is the JSON body published by the broker drivers.
type Envelope struct {
	ChannelID string    `json:"channel_id"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sent_at"`
}

func encodeEnvelope(channelID string, text string, now time.Time) ([]byte, error) {
	body, err := json.Marshal(Envelope{ChannelID: channelID, Text: text, SentAt: now.UTC()})
	if err != nil {
		return nil, errs.Wrap(err, "encode alert envelope")
	}
	return body, nil
}

// subjectToken turns a channel id into one dot-free routing token.
func subjectToken(channelID string) string {
	token := strings.TrimPrefix(strings.TrimSpace(channelID), "@")
	token = strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '*', '>', '#':
			return '_'
		}
		return r
	}, token)
	if token == "" {
		return "default"
	}
	return token
}

func checkSend(ctx context.Context, channelID string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if strings.TrimSpace(channelID) == "" {
		return errors.New("channel id is required")
	}
	return nil
}

func unknownDriver(driver string) error {
	return fmt.Errorf("unknown notifier driver %q", driver)
}
