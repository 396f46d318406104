package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/mail"
)

// Publisher enqueues emails on the durable mail outbox queue.  It
// satisfies mail.Sender, so services are unaware whether delivery is
// inline or queued.  Each call dials the broker; publish volume is low.
type Publisher struct {
	URL   string
	Queue string
	Log   zerolog.Logger
}

var _ mail.Sender = (*Publisher)(nil)

// Send publishes msg as a persistent MailRequestedEvent.
func (p *Publisher) Send(ctx context.Context, msg mail.Message) error {
	body, err := json.Marshal(NewMailRequestedEvent(msg, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal mail event: %w", err)
	}

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.Error().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Error().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declareMailQueue(ch, p.Queue); err != nil {
		p.Log.Error().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		p.Log.Error().Err(err).Msg("rabbitmq: publish failed")
		return err
	}
	return nil
}

// declareMailQueue declares the outbox queue (durable, idempotent).
func declareMailQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(name, true, false, false, false, nil)
	return err
}
