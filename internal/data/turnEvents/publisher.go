package turnEvents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/pkg/logger_i"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitPublisher sends every completed turn to a durable queue for auditing.
type RabbitPublisher struct {
	conn      *amqp.Connection
	queueName string
	logger    *logger_i.Logger
}

func Connect(ctx context.Context, url string, queueName string) (*RabbitPublisher, error) {
	if queueName == "" {
		queueName = config.RabbitMQTurnQueue
	}
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(3 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue failed: %w", err)
	}

	p := &RabbitPublisher{conn: conn, queueName: queueName, logger: logger_i.NewLogger("TurnEvents").With("queue", queueName)}
	go func() {
		<-ctx.Done()
		if err := p.Close(); err != nil {
			p.logger.Debug("Closing rabbitmq connection", "error", err)
		}
	}()
	p.logger.Info("Connected to rabbitmq")
	return p, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, turn commonModels.TurnRecord) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn failed: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          payload,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: turn.TraceId,
		Timestamp:     turn.FinishedAt,
	}); err != nil {
		return fmt.Errorf("publish turn failed: %w", err)
	}
	p.logger.WithTrace(ctx, config.TRACE_ID_KEY).Debug("Turn published")
	return nil
}

func (p *RabbitPublisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}

// Noop is used when rabbitmq is disabled or unreachable.
type Noop struct{}

func (Noop) Publish(context.Context, commonModels.TurnRecord) error { return nil }
