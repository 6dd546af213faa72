package ports

import "context"

// Notifier delivers one outbound text message to a channel.
type Notifier interface {
	Send(ctx context.Context, channelID string, text string) error
}
