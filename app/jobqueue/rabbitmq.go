package jobqueue

import (
	"context"
	"fmt"
	"sync"

	"prompt-studio/app/config"
	"prompt-studio/app/logger"

	"github.com/streadway/amqp"
)

// RabbitMQQueue 发布持久化消息到 durable 队列
type RabbitMQQueue struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queueName string
	log       *logger.Logger
	mu        sync.Mutex // amqp.Channel 不能并发发布
}

// NewRabbitMQQueue 连接 RabbitMQ 并声明队列
func NewRabbitMQQueue(cfg config.RabbitMQConfig, log *logger.Logger) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare rabbitmq queue %s: %w", cfg.Queue, err)
	}
	log.Infof("RabbitMQ 队列已就绪: %s", q.Name)
	return &RabbitMQQueue{conn: conn, ch: ch, queueName: q.Name, log: log}, nil
}

func (q *RabbitMQQueue) Enqueue(ctx context.Context, taskID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := newMessage(taskID)
	body, err := msg.encode()
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.ch.Publish("", q.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    msg.MessageID,
		Timestamp:    msg.EnqueuedAt,
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish prompt task %d: %w", taskID, err)
	}
	q.log.Infof("任务已发布到 RabbitMQ: TaskID=%d, MessageID=%s", taskID, msg.MessageID)
	return nil
}

func (q *RabbitMQQueue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
