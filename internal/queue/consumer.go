package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Consumer listens to the hiring.completed queue and appends one line per
// completed hiring to a log file.
type Consumer struct {
	URL     string
	LogPath string
	Log     zerolog.Logger
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  A lost
// connection is retried with a doubling backoff capped at 30s.  Messages that
// cannot be handled are rejected without requeue so they cannot loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("hiring-consumer: dial failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
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
		c.Log.Warn().Err(err).Msg("hiring-consumer: consume loop ended; reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn().Err(err).Msg("hiring-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(HiringCompletedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(HiringCompletedQueue, "", false, false, false, false, nil)
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
			if err := c.HandleMessage(d.Body); err != nil {
				c.Log.Error().Err(err).Msg("hiring-consumer: handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event and appends it to the log file.
func (c *Consumer) HandleMessage(body []byte) error {
	var ev HiringCompletedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	path := c.LogPath
	if path == "" {
		path = filepath.Join("logs", "hiring.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single human-readable log line.
func FormatLine(ev HiringCompletedEvent) string {
	price := "-"
	if ev.AgreedPrice != nil {
		price = fmt.Sprintf("%d", *ev.AgreedPrice)
	}
	rejected := "[]"
	if len(ev.RejectedIDs) > 0 {
		rejected = "[" + strings.Join(ev.RejectedIDs, ",") + "]"
	}
	return fmt.Sprintf("[%s] Hiring completed | request_id=%s | response_id=%s | client_id=%s | artist_id=%s | category=%q | city=%q | event_date=%s | type=%s | price=%s | rejected=%s\n",
		ev.CompletedAt, ev.RequestID, ev.ResponseID, ev.ClientID, ev.ArtistID, ev.CategoryID, ev.City, ev.EventDate, ev.ResponseType, price, rejected)
}
