// Package jobqueue 把已提交的提示词任务投递给外部生成节点
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"prompt-studio/app/config"
	"prompt-studio/app/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobQueue 生成任务队列，只投递任务ID
type JobQueue interface {
	Enqueue(ctx context.Context, taskID uint) error
	Close() error
}

// Message 投递给生成节点的消息体
type Message struct {
	MessageID    string    `json:"message_id"`
	PromptTaskID uint      `json:"prompt_task_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

func newMessage(taskID uint) Message {
	return Message{
		MessageID:    uuid.NewString(),
		PromptTaskID: taskID,
		EnqueuedAt:   time.Now().UTC(),
	}
}

func (m Message) encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode job message: %w", err)
	}
	return b, nil
}

// DecodeMessage 解析队列消息
func DecodeMessage(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("decode job message: %w", err)
	}
	if m.PromptTaskID == 0 {
		return Message{}, fmt.Errorf("decode job message: missing prompt_task_id")
	}
	return m, nil
}

// New 根据配置创建队列
func New(cfg config.QueueConfig, db *gorm.DB, log *logger.Logger) (JobQueue, error) {
	switch cfg.Driver {
	case config.QueueDriverDatabase, "":
		return NewDatabaseQueue(db, log), nil
	case config.QueueDriverRedis:
		return NewRedisQueue(cfg.Redis, log)
	case config.QueueDriverRabbitMQ:
		return NewRabbitMQQueue(cfg.RabbitMQ, log)
	case config.QueueDriverHTTP:
		return NewHTTPQueue(cfg.HTTP, log), nil
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", cfg.Driver)
	}
}
