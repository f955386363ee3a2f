package jobqueue

import (
	"context"
	"fmt"

	"prompt-studio/app/config"
	"prompt-studio/app/logger"

	"github.com/redis/go-redis/v9"
)

// RedisQueue 把消息 LPUSH 到列表，生成节点 BRPOP 消费
type RedisQueue struct {
	client *redis.Client
	key    string
	log    *logger.Logger
}

// NewRedisQueue 连接 redis 并检查连通性
func NewRedisQueue(cfg config.RedisConfig, log *logger.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	log.Infof("Redis 队列连接成功: %s, key=%s", cfg.Addr, cfg.Key)
	return NewRedisQueueWithClient(client, cfg.Key, log), nil
}

// NewRedisQueueWithClient 使用已有客户端创建队列
func NewRedisQueueWithClient(client *redis.Client, key string, log *logger.Logger) *RedisQueue {
	return &RedisQueue{client: client, key: key, log: log}
}

func (q *RedisQueue) Enqueue(ctx context.Context, taskID uint) error {
	body, err := newMessage(taskID).encode()
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("enqueue prompt task %d to redis: %w", taskID, err)
	}
	q.log.Infof("任务已加入 Redis 队列: TaskID=%d", taskID)
	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
