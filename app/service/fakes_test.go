package service_test

import (
	"context"
	"errors"
	"sync"
)

// recordingQueue 记录投递的任务ID，可模拟投递失败
type recordingQueue struct {
	mu   sync.Mutex
	ids  []uint
	fail error
}

func (q *recordingQueue) Enqueue(_ context.Context, taskID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail != nil {
		return q.fail
	}
	q.ids = append(q.ids, taskID)
	return nil
}

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) enqueued() []uint {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uint(nil), q.ids...)
}

var errBrokerDown = errors.New("broker down")
