package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
	"orderbot/internal/ports"
)

type IngestResult struct {
	Scanned  int
	Checked  int
	Skipped  int
	Invalid  int
	Outcomes map[order.Outcome]int
}

type ApplyResult struct {
	Outcome order.Outcome
	Status  order.Status
	// Rows is the number of order rows written.
	Rows int
}

// IngestOnce processes every unmarked ingestion row in row order. A store
// failure stops the cycle and leaves the current row unmarked, so the next
// cycle retries it; applying an event twice is a no-op.
func (s *Service) IngestOnce(ctx context.Context) (IngestResult, error) {
	result := IngestResult{Outcomes: map[order.Outcome]int{}}
	if err := checkContext(ctx); err != nil {
		return result, err
	}
	if s.messages == nil {
		return result, errMessagesRequired
	}
	if s.orders == nil {
		return result, errOrdersRequired
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	msgs, err := s.messages.ListMessages(ctx)
	if err != nil {
		return result, errs.Wrap(err, "list messages")
	}

	view := &orderView{repo: s.orders}
	for _, msg := range msgs {
		if msg.Processed() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, errs.Wrap(err, "check context")
		}
		result.Scanned++

		marker, outcome, err := s.process(ctx, view, msg)
		if err != nil {
			return result, err
		}
		if err := s.messages.MarkProcessed(ctx, msg, marker); err != nil {
			return result, errs.Wrapf(err, "mark row %d", msg.RowIndex)
		}
		s.telemetry.MessageParsed(marker)

		switch marker {
		case order.MarkerChecked:
			result.Checked++
			result.Outcomes[outcome]++
		case order.MarkerSkipped:
			result.Skipped++
		case order.MarkerInvalid:
			result.Invalid++
		}
	}

	if result.Scanned > 0 {
		logging.Info(ctx, "ingest cycle done",
			slog.Int("scanned", result.Scanned),
			slog.Int("checked", result.Checked),
			slog.Int("skipped", result.Skipped),
			slog.Int("invalid", result.Invalid),
		)
	}
	return result, nil
}

func (s *Service) process(ctx context.Context, view *orderView, msg order.RawMessage) (string, order.Outcome, error) {
	ev, err := s.parser.Parse(msg.Text)
	switch {
	case errors.Is(err, order.ErrNotOrderMessage):
		return order.MarkerSkipped, "", nil
	case err != nil:
		logging.Warn(ctx, "order message rejected",
			slog.Int("row", msg.RowIndex),
			slog.String("identity", msg.Identity),
			slog.Any("err", errs.Loggable(err)),
		)
		return order.MarkerInvalid, "", nil
	}

	applied, err := s.apply(ctx, view, ev)
	if err != nil {
		return "", "", errs.Wrapf(err, "apply row %d", msg.RowIndex)
	}
	return order.MarkerChecked, applied.Outcome, nil
}

// Apply applies one event against the current order table.
func (s *Service) Apply(ctx context.Context, ev order.Event) (ApplyResult, error) {
	if err := checkContext(ctx); err != nil {
		return ApplyResult{}, err
	}
	if s.orders == nil {
		return ApplyResult{}, errOrdersRequired
	}

	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	return s.apply(ctx, &orderView{repo: s.orders}, ev)
}

func (s *Service) apply(ctx context.Context, view *orderView, ev order.Event) (ApplyResult, error) {
	records, err := view.load(ctx)
	if err != nil {
		return ApplyResult{}, err
	}
	now := s.clock()
	attrs := []slog.Attr{
		slog.String("kind", string(ev.Kind)),
		slog.String("order_number", ev.OrderNumber),
		slog.String("site", ev.Site),
	}

	matches := order.Matching(records, ev.Key())
	if len(matches) == 0 {
		decision := order.Decide(nil, ev)
		s.telemetry.OrderTransition(string(decision.Outcome))
		if decision.Outcome == order.OutcomeAnomaly {
			logging.Warn(ctx, "order event without matching order", attrs...)
			return ApplyResult{Outcome: decision.Outcome}, nil
		}

		if err := s.orders.CreateOrder(ctx, order.NewRecord(ev, now)); err != nil {
			return ApplyResult{}, errs.Wrap(err, "create order")
		}
		view.invalidate()
		logging.Info(ctx, "order created", attrs...)
		return ApplyResult{Outcome: decision.Outcome, Status: decision.Status, Rows: 1}, nil
	}

	// Legacy tables may hold several rows per key; each row moves forward
	// on its own.
	result := ApplyResult{Outcome: order.OutcomeDuplicate}
	for _, record := range matches {
		record := record
		if record.Damaged {
			logging.Warn(ctx, "damaged order row left untouched", append(attrs, slog.Int("order_row", record.RowIndex))...)
			continue
		}
		decision := order.Decide(&record, ev)
		if decision.Outcome != order.OutcomeUpdated {
			continue
		}
		if err := s.orders.UpdateStatus(ctx, record, decision.Status, now); err != nil {
			return ApplyResult{}, errs.Wrapf(err, "update order row %d", record.RowIndex)
		}
		view.setStatus(record.RowIndex, decision.Status, now)
		result = ApplyResult{Outcome: order.OutcomeUpdated, Status: decision.Status, Rows: result.Rows + 1}
	}

	s.telemetry.OrderTransition(string(result.Outcome))
	if result.Outcome == order.OutcomeUpdated {
		logging.Info(ctx, "order status updated", append(attrs, slog.String("status", string(result.Status)))...)
	}
	return result, nil
}

// orderView caches the order table for one cycle. A create drops the cache
// because the new row's index is only known after a re-read.
type orderView struct {
	repo    ports.OrderRepository
	records []order.Record
	loaded  bool
}

func (v *orderView) load(ctx context.Context) ([]order.Record, error) {
	if v.loaded {
		return v.records, nil
	}
	records, err := v.repo.ListOrders(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "list orders")
	}
	v.records = records
	v.loaded = true
	return records, nil
}

func (v *orderView) invalidate() {
	v.records = nil
	v.loaded = false
}

func (v *orderView) setStatus(rowIndex int, status order.Status, at time.Time) {
	for i := range v.records {
		if v.records[i].RowIndex == rowIndex {
			v.records[i].Status = status
			v.records[i].LastUpdatedAt = at
		}
	}
}
