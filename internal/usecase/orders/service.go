package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
	"orderbot/internal/ports"
)

var (
	errMessagesRequired = errors.New("message repository is required")
	errOrdersRequired   = errors.New("order repository is required")
	errNotifierRequired = errors.New("notifier is required")
	errChannelRequired  = errors.New("alert channel is required")
)

type Options struct {
	AlertChannel string
	Policy       order.AlertPolicy
	Header       string
	Clock        func() time.Time
	Telemetry    ports.Telemetry
}

// Service runs the order pipeline: ingestion rows in, order records and
// alert batches out.
type Service struct {
	messages ports.MessageRepository
	orders   ports.OrderRepository
	notifier ports.Notifier
	parser   *order.Parser

	alertChannel string
	policy       order.AlertPolicy
	header       string
	clock        func() time.Time
	telemetry    ports.Telemetry

	// ingestMu serializes read-modify-write cycles on the order table.
	ingestMu sync.Mutex
}

// NewService wires the pipeline. notifier may be nil for read-only use.
func NewService(
	messages ports.MessageRepository,
	orders ports.OrderRepository,
	notifier ports.Notifier,
	parser *order.Parser,
	opts Options,
) *Service {
	if parser == nil {
		parser = order.NewParser(nil)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	telemetry := opts.Telemetry
	if telemetry == nil {
		telemetry = ports.NopTelemetry{}
	}
	header := strings.TrimSpace(opts.Header)
	if header == "" {
		header = order.DefaultAlertHeader
	}

	return &Service{
		messages:     messages,
		orders:       orders,
		notifier:     notifier,
		parser:       parser,
		alertChannel: strings.TrimSpace(opts.AlertChannel),
		policy:       opts.Policy,
		header:       header,
		clock:        clock,
		telemetry:    telemetry,
	}
}

func (s *Service) Parser() *order.Parser {
	return s.parser
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}
