package reportqueue

import (
	"context"
	"fmt"

	"propval/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Config struct {
	Url        string
	Exchange   string
	RoutingKey string
}

// Publisher hands finalized valuation records to the report-rendering
// collaborator over AMQP. The record payload is self-contained JSON, so
// the consumer needs nothing else to render a report.
type Publisher struct {
	config     Config
	connection *amqp.Connection
	channel    *amqp.Channel
}

func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.Url == "" {
		return nil, fmt.Errorf("report queue url is required")
	}

	connection, err := amqp.Dial(cfg.Url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial report queue: %w", err)
	}

	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("failed to open report queue channel: %w", err)
	}

	if cfg.Exchange != "" {
		err = channel.ExchangeDeclare(
			cfg.Exchange,
			"topic",
			true,  // durable
			false, // auto-delete
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			_ = channel.Close()
			_ = connection.Close()
			return nil, fmt.Errorf("failed to declare exchange '%s': %w", cfg.Exchange, err)
		}
	}

	return &Publisher{
		config:     cfg,
		connection: connection,
		channel:    channel,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, record *domain.ValuationRecord) error {
	payload, err := record.ToJSONBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize valuation record %s: %w", record.RunID, err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.config.Exchange,
		p.config.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    record.RunID.String(),
			Body:         payload,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish valuation record %s: %w", record.RunID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.connection != nil {
		return p.connection.Close()
	}
	return nil
}
