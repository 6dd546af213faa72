package ports

import (
	"context"
	"time"
)

type InboundMessage struct {
	Source     string
	Identity   string
	Text       string
	ReceivedAt time.Time
}

// MessageSource polls an inbound transport. MarkSeen acknowledges messages
// at the transport layer so they are not delivered again.
type MessageSource interface {
	Name() string
	Fetch(ctx context.Context) ([]InboundMessage, error)
	MarkSeen(ctx context.Context, messages []InboundMessage) error
}
