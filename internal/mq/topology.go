package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeRuns Exchange = "marketmind.runs"
	ExchangeDLQ  Exchange = "marketmind.dlq"
)

// Queues — имена очередей.
const (
	// QueueRunsRequested — новые runs, ожидающие движок.
	QueueRunsRequested Queue = "runs.requested"

	// QueueRunsCancel — запросы на отмену выполняющихся runs.
	QueueRunsCancel Queue = "runs.cancel"

	// QueueRunsFinished — терминальные события runs (consumer: downstream analytics).
	QueueRunsFinished Queue = "runs.finished"

	// QueueDLQRuns — dead letter queue для сообщений runs.
	QueueDLQRuns Queue = "dlq.runs"
)

// Routing keys.
const (
	RoutingKeyRequested RoutingKey = "requested"
	RoutingKeyCancel    RoutingKey = "cancel"
	RoutingKeyFinished  RoutingKey = "finished"
	RoutingKeyDLQRuns   RoutingKey = "runs"
)

// SetupTopology объявляет exchanges, queues и bindings.
// Идемпотентно: повторный вызов на существующей топологии безопасен.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeRuns, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// runs.requested — с DLQ (run, который движок не смог принять
		// после retry, уходит в DLQ для ручного разбора)
		{QueueRunsRequested, dlqArgs},

		// runs.cancel — без DLQ (отмена best-effort; run, которого
		// движок не знает, просто игнорируется)
		{QueueRunsCancel, nil},

		// runs.finished — без DLQ (терминальные события, best-effort)
		{QueueRunsFinished, nil},

		// dlq.runs — сама DLQ очередь
		{QueueDLQRuns, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueRunsRequested, RoutingKeyRequested, ExchangeRuns},
		{QueueRunsCancel, RoutingKeyCancel, ExchangeRuns},
		{QueueRunsFinished, RoutingKeyFinished, ExchangeRuns},
		{QueueDLQRuns, RoutingKeyDLQRuns, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
