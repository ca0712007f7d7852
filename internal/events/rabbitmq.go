package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingKeyItemTranslated = "item.translated"
	RoutingKeyJobProgress    = "job.progress"
)

// ItemTranslated announces that an item's translation is durably stored.
type ItemTranslated struct {
	ItemID     int64     `json:"item_id"`
	ChannelID  int64     `json:"channel_id"`
	Text       string    `json:"text"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	Timestamp  time.Time `json:"timestamp"`
}

// JobProgress announces a fetch job stage change or batch commit.
type JobProgress struct {
	JobID        string    `json:"job_id"`
	ChannelID    int64     `json:"channel_id"`
	Stage        string    `json:"stage"`
	NewItemCount int       `json:"new_item_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// RabbitMQ publishes ingestion and translation events on a direct exchange.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

type Config struct {
	URL      string
	Exchange string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	for _, routingKey := range []string{RoutingKeyItemTranslated, RoutingKeyJobProgress} {
		q, err := ch.QueueDeclare(
			cfg.Exchange+"."+routingKey,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", routingKey, err)
		}

		if err := ch.QueueBind(q.Name, routingKey, cfg.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("bind queue %s: %w", routingKey, err)
		}
	}

	logger.Info("connected to rabbitmq", "exchange", cfg.Exchange)

	return &RabbitMQ{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

func (r *RabbitMQ) PublishItemTranslated(ctx context.Context, msg ItemTranslated) error {
	msg.Timestamp = time.Now().UTC()
	return r.publish(ctx, RoutingKeyItemTranslated, msg)
}

func (r *RabbitMQ) PublishJobProgress(ctx context.Context, msg JobProgress) error {
	msg.Timestamp = time.Now().UTC()
	return r.publish(ctx, RoutingKeyJobProgress, msg)
}

func (r *RabbitMQ) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	r.logger.Debug("published event", "routing_key", routingKey)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
