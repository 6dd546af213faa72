package worksheet

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
	"orderbot/internal/ports"
)

type OrderRepository struct {
	store ports.TableStore
	table string
	loc   *time.Location
}

var _ ports.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(store ports.TableStore, table string, loc *time.Location) *OrderRepository {
	table = strings.TrimSpace(table)
	if table == "" {
		table = DefaultOrdersTable
	}
	if loc == nil {
		loc = time.UTC
	}
	return &OrderRepository{store: store, table: table, loc: loc}
}

func (r *OrderRepository) Table() string {
	return r.table
}

func (r *OrderRepository) EnsureSchema(ctx context.Context) error {
	return errs.Wrapf(r.store.EnsureTable(ctx, r.table, ordersHeader), "ensure table %q", r.table)
}

// ListOrders decodes every order row. Rows with an undecodable date or
// status come back as Damaged records with a warning, so their key still
// blocks a second create.
func (r *OrderRepository) ListOrders(ctx context.Context) ([]order.Record, error) {
	rows, err := r.store.ReadAllRows(ctx, r.table)
	if err != nil {
		return nil, errs.Wrap(err, "read orders")
	}

	out := make([]order.Record, 0, len(rows))
	for _, row := range rows {
		number := strings.TrimSpace(row.Cell(orderColNumber))
		if number == "" {
			continue
		}

		damaged := false
		date, err := order.ParseDate(row.Cell(orderColDate))
		if err != nil {
			damaged = true
			logging.Warn(ctx, "order row with bad date kept read-only",
				slog.String("table", r.table),
				slog.Int("row", row.Index),
				slog.Any("err", errs.Loggable(err)),
			)
		}
		status, err := parseStatusLabel(row.Cell(orderColStatus))
		if err != nil {
			damaged = true
			logging.Warn(ctx, "order row with bad status kept read-only",
				slog.String("table", r.table),
				slog.Int("row", row.Index),
				slog.Any("err", errs.Loggable(err)),
			)
		}

		out = append(out, order.Record{
			RowIndex:      row.Index,
			OrderNumber:   number,
			Supplier:      strings.TrimSpace(row.Cell(orderColSupplier)),
			DeliveryDate:  date,
			Site:          order.NormalizeSite(row.Cell(orderColSite)),
			Status:        status,
			LastUpdatedAt: parseTime(row.Cell(orderColUpdatedAt), r.loc),
			Damaged:       damaged,
		})
	}
	return out, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, record order.Record) error {
	cells := cellsOf(len(ordersHeader))
	cells[orderColNumber-1] = record.OrderNumber
	cells[orderColSupplier-1] = record.Supplier
	cells[orderColDate-1] = record.DeliveryDate.String()
	cells[orderColSite-1] = record.Site
	cells[orderColStatus-1] = StatusLabel(record.Status)
	cells[orderColUpdatedAt-1] = formatTime(record.LastUpdatedAt, r.loc)
	return errs.Wrapf(r.store.AppendRow(ctx, r.table, cells), "append order %s", record.OrderNumber)
}

// UpdateStatus writes the status cell first. A failure before the time
// cell is written leaves a correct status with a stale timestamp.
func (r *OrderRepository) UpdateStatus(ctx context.Context, record order.Record, status order.Status, updatedAt time.Time) error {
	if err := r.store.UpdateCell(ctx, r.table, record.RowIndex, orderColStatus, StatusLabel(status)); err != nil {
		return errs.Wrapf(err, "update status of order row %d", record.RowIndex)
	}
	if err := r.store.UpdateCell(ctx, r.table, record.RowIndex, orderColUpdatedAt, formatTime(updatedAt, r.loc)); err != nil {
		return errs.Wrapf(err, "update time of order row %d", record.RowIndex)
	}
	return nil
}
