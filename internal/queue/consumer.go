package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/garbage-collector/internal/mail"
	"github.com/iliyamo/garbage-collector/internal/metrics"
)

// Consumer drains the mail outbox and hands each message to Deliver
// (normally the SMTP sender).
type Consumer struct {
	URL      string
	Queue    string
	Prefetch int
	Deliver  mail.Sender
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

const maxBackoff = 30 * time.Second

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broker
// failures trigger a reconnect with exponential backoff; Run only returns
// once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("mail-consumer: failed to dial broker")
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn().Err(err).Msg("mail-consumer: consume loop ended; reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.Prefetch, 0, false); err != nil {
		c.Log.Warn().Err(err).Msg("mail-consumer: set QoS failed")
	}
	if err := declareMailQueue(ch, c.Queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(ctx, d.Body); err != nil {
				c.Log.Error().Err(err).Msg("mail-consumer: delivery failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev MailRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.count("error")
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.To == "" {
		c.count("error")
		return errors.New("mail event without recipient")
	}
	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := c.Deliver.Send(sendCtx, ev.Message()); err != nil {
		c.count("error")
		return err
	}
	c.count("ok")
	c.Log.Info().Str("to", ev.To).Str("subject", ev.Subject).
		Dur("queued_for", time.Since(ev.RequestedAt)).Msg("mail delivered")
	return nil
}

func (c *Consumer) count(outcome string) {
	if c.Metrics != nil {
		c.Metrics.MailMessages.WithLabelValues("queued", outcome).Inc()
	}
}

// sleepCtx waits for d or until ctx is done; it reports false in the
// latter case.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
