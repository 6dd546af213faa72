package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"orderbot/internal/errs"
)

const DefaultSubjectPrefix = "orderbot.alerts"

type natsPublisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSNotifier publishes alert envelopes to <prefix>.<channel>.
type NATSNotifier struct {
	conn   *nats.Conn
	pub    natsPublisher
	prefix string
	now    func() time.Time
}

func ConnectNATS(url string, prefix string) (*NATSNotifier, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("nats url is required")
	}

	conn, err := nats.Connect(url, nats.Name("orderbot"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}
	n := newNATSNotifier(conn, prefix)
	n.conn = conn
	return n, nil
}

func newNATSNotifier(pub natsPublisher, prefix string) *NATSNotifier {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSNotifier{pub: pub, prefix: prefix, now: time.Now}
}

func (n *NATSNotifier) Send(ctx context.Context, channelID string, text string) error {
	if err := checkSend(ctx, channelID); err != nil {
		return err
	}

	body, err := encodeEnvelope(channelID, text, n.now())
	if err != nil {
		return err
	}

	subject := n.prefix + "." + subjectToken(channelID)
	if err := n.pub.Publish(subject, body); err != nil {
		return errs.Wrapf(err, "publish alert to %s", subject)
	}
	// Flush so a dropped connection surfaces as this batch's failure.
	if err := n.pub.FlushWithContext(ctx); err != nil {
		return errs.Wrapf(err, "flush alert to %s", subject)
	}
	return nil
}

func (n *NATSNotifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
