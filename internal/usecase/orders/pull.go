package orders

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"orderbot/internal/bootstrap/logging"
	"orderbot/internal/domain/order"
	"orderbot/internal/errs"
	"orderbot/internal/ports"
)

type PullResult struct {
	Fetched    int
	Appended   int
	Duplicates int
}

// PullSource copies new messages from src into the ingestion table. A
// message whose identity is already stored is dropped. Messages are marked
// seen only after every append succeeded, so a failed pull is redelivered.
func (s *Service) PullSource(ctx context.Context, src ports.MessageSource) (PullResult, error) {
	if err := checkContext(ctx); err != nil {
		return PullResult{}, err
	}
	if src == nil {
		return PullResult{}, errors.New("message source is required")
	}
	if s.messages == nil {
		return PullResult{}, errMessagesRequired
	}

	fetched, err := src.Fetch(ctx)
	if err != nil {
		return PullResult{}, errs.Wrapf(err, "fetch from %s", src.Name())
	}
	result := PullResult{Fetched: len(fetched)}

	if len(fetched) > 0 {
		// Appends share the table with IngestOnce markers.
		s.ingestMu.Lock()
		err = s.appendNew(ctx, fetched, &result)
		s.ingestMu.Unlock()
		if err != nil {
			return result, err
		}
	}

	if err := src.MarkSeen(ctx, fetched); err != nil {
		return result, errs.Wrapf(err, "acknowledge %s", src.Name())
	}
	s.telemetry.InboundMessages(src.Name(), result.Appended)
	if result.Appended > 0 || result.Duplicates > 0 {
		logging.Info(ctx, "source pulled",
			slog.String("source", src.Name()),
			slog.Int("appended", result.Appended),
			slog.Int("duplicates", result.Duplicates),
		)
	}
	return result, nil
}

func (s *Service) appendNew(ctx context.Context, fetched []ports.InboundMessage, result *PullResult) error {
	existing, err := s.messages.ListMessages(ctx)
	if err != nil {
		return errs.Wrap(err, "list messages")
	}
	seen := make(map[string]struct{}, len(existing)+len(fetched))
	for _, msg := range existing {
		seen[msg.Identity] = struct{}{}
	}

	for _, in := range fetched {
		identity := strings.TrimSpace(in.Identity)
		if identity == "" {
			identity = in.Text
		}
		if _, dup := seen[identity]; dup {
			result.Duplicates++
			continue
		}
		seen[identity] = struct{}{}

		receivedAt := in.ReceivedAt
		if receivedAt.IsZero() {
			receivedAt = s.clock()
		}
		if err := s.messages.AppendMessage(ctx, order.RawMessage{
			Source:     in.Source,
			Identity:   identity,
			Text:       in.Text,
			ReceivedAt: receivedAt,
		}); err != nil {
			return errs.Wrapf(err, "append message %s", identity)
		}
		result.Appended++
	}
	return nil
}
