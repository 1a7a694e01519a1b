package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"neuropathx/internal/model"
)

// ScanPublisher pushes completed scan records onto the persist queue so the
// audit write happens off the request path.
type ScanPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewScanPublisher(conn *amqp.Connection, queueName string) *ScanPublisher {
	return &ScanPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *ScanPublisher) Publish(ctx context.Context, record model.ScanRecord) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal scan record failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish scan record failed: %w", err)
	}
	return nil
}
