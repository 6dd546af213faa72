package ports

import (
	"context"
	"time"

	"orderbot/internal/domain/order"
)

// MessageRepository gives named-field access to the ingestion table.
type MessageRepository interface {
	EnsureSchema(ctx context.Context) error
	ListMessages(ctx context.Context) ([]order.RawMessage, error)
	AppendMessage(ctx context.Context, msg order.RawMessage) error
	MarkProcessed(ctx context.Context, msg order.RawMessage, marker string) error
}

// OrderRepository gives named-field access to the orders table.
type OrderRepository interface {
	EnsureSchema(ctx context.Context) error
	ListOrders(ctx context.Context) ([]order.Record, error)
	CreateOrder(ctx context.Context, record order.Record) error
	UpdateStatus(ctx context.Context, record order.Record, status order.Status, updatedAt time.Time) error
}
