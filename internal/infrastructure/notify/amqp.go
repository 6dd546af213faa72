package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"orderbot/internal/errs"
)

const DefaultExchange = "orderbot.alerts"

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes alert envelopes to a topic exchange with routing
// key alerts.<channel>.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       amqpPublisher
	exchange string
	now      func() time.Time
}

// DialAMQP connects and declares the durable topic exchange.
func DialAMQP(url string, exchange string) (*AMQPNotifier, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errs.Wrap(err, "dial amqp")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errs.Wrap(err, "open amqp channel")
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // args
	); err != nil {
		_ = conn.Close()
		return nil, errs.Wrapf(err, "declare exchange %q", exchange)
	}

	n := newAMQPNotifier(ch, exchange)
	n.conn = conn
	return n, nil
}

func newAMQPNotifier(ch amqpPublisher, exchange string) *AMQPNotifier {
	return &AMQPNotifier{ch: ch, exchange: exchange, now: time.Now}
}

func (n *AMQPNotifier) Send(ctx context.Context, channelID string, text string) error {
	if err := checkSend(ctx, channelID); err != nil {
		return err
	}

	now := n.now()
	body, err := encodeEnvelope(channelID, text, now)
	if err != nil {
		return err
	}

	key := "alerts." + subjectToken(channelID)
	if err := n.ch.PublishWithContext(ctx, n.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		Body:         body,
	}); err != nil {
		return errs.Wrapf(err, "publish alert to %s", key)
	}
	return nil
}

func (n *AMQPNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
