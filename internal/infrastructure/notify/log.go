package notify

import (
	"context"
	"log/slog"

	"orderbot/internal/bootstrap/logging"
)

// LogNotifier writes alerts to the structured log instead of a transport.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, channelID string, text string) error {
	if err := checkSend(ctx, channelID); err != nil {
		return err
	}
	logging.Info(ctx, "alert",
		slog.String("channel_id", channelID),
		slog.String("text", text),
	)
	return nil
}

func (LogNotifier) Close() error {
	return nil
}
