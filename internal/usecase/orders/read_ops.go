package orders

import (
	"context"

	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
)

type OrderFilter struct {
	// Status keeps only records with this status; empty keeps all.
	Status order.Status
	// OpenOnly drops received orders.
	OpenOnly bool
}

func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]order.Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if s.orders == nil {
		return nil, errOrdersRequired
	}

	records, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "list orders")
	}

	out := make([]order.Record, 0, len(records))
	for _, record := range records {
		if record.Damaged {
			continue
		}
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		if filter.OpenOnly && record.Status.Terminal() {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}
