package worksheet

import (
	"context"
	"strings"
	"time"

	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
	"orderbot/internal/ports"
)

type MessageRepository struct {
	store ports.TableStore
	table string
	loc   *time.Location
}

var _ ports.MessageRepository = (*MessageRepository)(nil)

func NewMessageRepository(store ports.TableStore, table string, loc *time.Location) *MessageRepository {
	table = strings.TrimSpace(table)
	if table == "" {
		table = DefaultMessagesTable
	}
	if loc == nil {
		loc = time.UTC
	}
	return &MessageRepository{store: store, table: table, loc: loc}
}

func (r *MessageRepository) Table() string {
	return r.table
}

func (r *MessageRepository) EnsureSchema(ctx context.Context) error {
	return errs.Wrapf(r.store.EnsureTable(ctx, r.table, messagesHeader), "ensure table %q", r.table)
}

func (r *MessageRepository) ListMessages(ctx context.Context) ([]order.RawMessage, error) {
	rows, err := r.store.ReadAllRows(ctx, r.table)
	if err != nil {
		return nil, errs.Wrap(err, "read messages")
	}

	out := make([]order.RawMessage, 0, len(rows))
	for _, row := range rows {
		text := row.Cell(messageColText)
		identity := row.Cell(messageColIdentity)
		if strings.TrimSpace(text) == "" && strings.TrimSpace(identity) == "" {
			continue
		}
		if strings.TrimSpace(identity) == "" {
			identity = text
		}
		out = append(out, order.RawMessage{
			RowIndex:   row.Index,
			Source:     row.Cell(messageColSource),
			Identity:   identity,
			Text:       text,
			ReceivedAt: parseTime(row.Cell(messageColReceivedAt), r.loc),
			Marker:     strings.TrimSpace(row.Cell(messageColMarker)),
		})
	}
	return out, nil
}

func (r *MessageRepository) AppendMessage(ctx context.Context, msg order.RawMessage) error {
	cells := cellsOf(len(messagesHeader))
	cells[messageColSource-1] = msg.Source
	cells[messageColIdentity-1] = msg.Identity
	cells[messageColText-1] = msg.Text
	cells[messageColReceivedAt-1] = formatTime(msg.ReceivedAt, r.loc)
	cells[messageColMarker-1] = msg.Marker
	return errs.Wrap(r.store.AppendRow(ctx, r.table, cells), "append message")
}

func (r *MessageRepository) MarkProcessed(ctx context.Context, msg order.RawMessage, marker string) error {
	return errs.Wrapf(
		r.store.UpdateCell(ctx, r.table, msg.RowIndex, messageColMarker, marker),
		"mark message row %d", msg.RowIndex,
	)
}
