package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/MarketMind/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunCancel    MessageType = "run.cancel"
	MessageTypeRunFinished  MessageType = "run.finished"
)

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunRequestedPayload — payload сообщения о новом run.
type RunRequestedPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// RunCancelPayload — payload запроса на отмену run.
type RunCancelPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// RunFinishedPayload — payload сообщения о завершённом run.
type RunFinishedPayload struct {
	RunID     uuid.UUID        `json:"run_id"`
	TenantID  string           `json:"tenant_id"`
	Pipeline  string           `json:"pipeline"`
	Status    domain.RunStatus `json:"status"`
	ErrorKind domain.ErrorKind `json:"error_kind,omitempty"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunRequested публикует событие о новом run, ожидающем выполнения.
// Потребитель: Engine.
func (p *Publisher) PublishRunRequested(ctx context.Context, runID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunRequested,
		Payload:   RunRequestedPayload{RunID: runID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyRequested, msg)
}

// PublishRunCancel публикует запрос на отмену run.
// Потребитель: Engine (отмена применяется на границе стадий).
func (p *Publisher) PublishRunCancel(ctx context.Context, runID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunCancel,
		Payload:   RunCancelPayload{RunID: runID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyCancel, msg)
}

// RunFinished публикует терминальное событие run.
// Потребители: downstream-аналитика, биллинг.
//
// Сигнатура реализует pipeline.Notifier.
func (p *Publisher) RunFinished(ctx context.Context, run *domain.Run) error {
	msg := &Message{
		ID:   uuid.New().String(),
		Type: MessageTypeRunFinished,
		Payload: RunFinishedPayload{
			RunID:     run.ID,
			TenantID:  run.TenantID,
			Pipeline:  run.Pipeline,
			Status:    run.Status,
			ErrorKind: run.ErrorKind,
		},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyFinished, msg)
}
