package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tonykorol/tms-dproject/internal/domain"
	"github.com/tonykorol/tms-dproject/internal/infra/metrics"
)

// RabbitJobQueue реализует очередь заданий поверх RabbitMQ.
type RabbitJobQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

var _ domain.JobQueue = (*RabbitJobQueue)(nil)

// NewRabbitJobQueue подключается к брокеру и объявляет долговечную очередь.
func NewRabbitJobQueue(url, queue string) (*RabbitJobQueue, error) {
	if url == "" {
		return nil, errors.New("rabbitmq: пустой адрес брокера")
	}
	if queue == "" {
		return nil, errors.New("rabbitmq: пустое имя очереди")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: подключение: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: открытие канала: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: объявление очереди: %w", err)
	}
	return &RabbitJobQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задание в очередь.
func (q *RabbitJobQueue) Enqueue(ctx context.Context, job domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("rabbitmq: публикация: %w", err)
	}
	return nil
}

// Consume читает задания по одному и передаёт их обработчику.
// Задание подтверждается независимо от результата обработки:
// неудавшийся запуск повторит следующее задание по расписанию,
// откатившись к чистому состоянию хранилища.
func (q *RabbitJobQueue) Consume(ctx context.Context, fn func(ctx context.Context, job domain.Job)) error {
	if err := q.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("rabbitmq: qos: %w", err)
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: подписка: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq: канал доставки закрыт")
			}
			var job domain.Job
			if err := json.Unmarshal(d.Body, &job); err != nil {
				_ = d.Nack(false, false)
				continue
			}
			fn(ctx, job)
			_ = d.Ack(false)
		}
	}
}

// Close закрывает канал и подключение.
func (q *RabbitJobQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
