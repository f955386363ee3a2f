package jobqueue

import (
	"context"
	"fmt"
	"time"

	"prompt-studio/app/config"
	"prompt-studio/app/logger"

	"resty.dev/v3"
)

// HTTPQueue 直接把消息 POST 给生成节点
type HTTPQueue struct {
	client   *resty.Client
	endpoint string
	log      *logger.Logger
}

// NewHTTPQueue 创建 HTTP 投递队列
func NewHTTPQueue(cfg config.HTTPQueue, log *logger.Logger) *HTTPQueue {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &HTTPQueue{client: client, endpoint: cfg.Endpoint, log: log}
}

func (q *HTTPQueue) Enqueue(ctx context.Context, taskID uint) error {
	msg := newMessage(taskID)
	resp, err := q.client.R().
		SetContext(ctx).
		SetBody(msg).
		Post(q.endpoint)
	if err != nil {
		return fmt.Errorf("post prompt task %d: %w", taskID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("post prompt task %d: worker responded %s", taskID, resp.Status())
	}
	q.log.Infof("任务已推送到生成节点: TaskID=%d, MessageID=%s", taskID, msg.MessageID)
	return nil
}

func (q *HTTPQueue) Close() error {
	return q.client.Close()
}
