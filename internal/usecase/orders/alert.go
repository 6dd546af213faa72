package orders

import (
	"context"
	"log/slog"

	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
)

type AlertFailure struct {
	Batch order.AlertBatch
	Err   error
}

type AlertResult struct {
	Batches []order.AlertBatch
	Sent    int
	Failed  []AlertFailure
}

type AlertOptions struct {
	// DryRun formats the batches without sending them.
	DryRun bool
}

// PreviewAlerts returns the batches the next alert cycle would send.
func (s *Service) PreviewAlerts(ctx context.Context) ([]order.AlertBatch, error) {
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
	return order.Aggregate(records, s.clock(), s.policy), nil
}

// FormatAlert renders a batch with the configured header.
func (s *Service) FormatAlert(batch order.AlertBatch) string {
	return order.FormatBatch(s.header, batch)
}

// AlertOnce sends one message per batch. A failed send is logged and
// recorded in the result; it never stops the remaining batches.
func (s *Service) AlertOnce(ctx context.Context, opts AlertOptions) (AlertResult, error) {
	batches, err := s.PreviewAlerts(ctx)
	if err != nil {
		return AlertResult{}, err
	}
	result := AlertResult{Batches: batches}
	if len(batches) == 0 || opts.DryRun {
		return result, nil
	}
	if s.notifier == nil {
		return result, errNotifierRequired
	}
	if s.alertChannel == "" {
		return result, errChannelRequired
	}

	for _, batch := range batches {
		attrs := []slog.Attr{
			slog.String("supplier", batch.Supplier),
			slog.String("delivery_date", batch.DeliveryDate.String()),
			slog.Int("sites", len(batch.Sites)),
		}
		if err := s.notifier.Send(ctx, s.alertChannel, s.FormatAlert(batch)); err != nil {
			s.telemetry.AlertDelivered(false)
			result.Failed = append(result.Failed, AlertFailure{Batch: batch, Err: err})
			logging.Error(ctx, "alert delivery failed", append(attrs, slog.Any("err", errs.Loggable(err)))...)
			continue
		}
		s.telemetry.AlertDelivered(true)
		result.Sent++
		logging.Info(ctx, "alert sent", attrs...)
	}
	return result, nil
}
