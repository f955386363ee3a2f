package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prompt-studio/app/logger"
	"prompt-studio/app/model"

	"gorm.io/gorm"
)

// DatabaseQueue 基于 generation_jobs 表的持久化队列，生成节点通过 Claim 领取
type DatabaseQueue struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewDatabaseQueue 创建数据库队列
func NewDatabaseQueue(db *gorm.DB, log *logger.Logger) *DatabaseQueue {
	return &DatabaseQueue{db: db, log: log}
}

// Enqueue 写入一条待领取记录
func (q *DatabaseQueue) Enqueue(ctx context.Context, taskID uint) error {
	msg := newMessage(taskID)
	job := &model.GenerationJob{
		MessageID:    msg.MessageID,
		PromptTaskID: taskID,
		Status:       model.JobStatusQueued,
	}
	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("enqueue prompt task %d: %w", taskID, err)
	}
	q.log.Infof("任务已加入数据库队列: TaskID=%d, JobID=%d", taskID, job.ID)
	return nil
}

// Claim 领取最早的一条待处理记录，没有记录时返回 nil
func (q *DatabaseQueue) Claim(ctx context.Context) (*model.GenerationJob, error) {
	var job model.GenerationJob
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ?", model.JobStatusQueued).
			Order("id ASC").First(&job).Error; err != nil {
			return err
		}

		// 条件更新，避免两个领取者拿到同一条
		now := time.Now()
		res := tx.Model(&model.GenerationJob{}).
			Where("id = ? AND status = ?", job.ID, model.JobStatusQueued).
			Updates(map[string]any{"status": model.JobStatusDelivered, "delivered_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		job.Status = model.JobStatusDelivered
		job.DeliveredAt = &now
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim generation job: %w", err)
	}
	return &job, nil
}

// Stats 各状态的记录数量
func (q *DatabaseQueue) Stats(ctx context.Context) (map[model.JobStatus]int64, error) {
	stats := make(map[model.JobStatus]int64)
	for _, s := range []model.JobStatus{model.JobStatusQueued, model.JobStatusDelivered} {
		var count int64
		if err := q.db.WithContext(ctx).Model(&model.GenerationJob{}).Where("status = ?", s).Count(&count).Error; err != nil {
			return nil, err
		}
		stats[s] = count
	}
	return stats, nil
}

// Cleanup 删除早于 cutoff 的已领取记录
func (q *DatabaseQueue) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	res := q.db.WithContext(ctx).
		Where("status = ? AND delivered_at < ?", model.JobStatusDelivered, cutoff).
		Delete(&model.GenerationJob{})
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup generation jobs: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		q.log.Infof("清理了 %d 条已领取的队列记录", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func (q *DatabaseQueue) Close() error {
	return nil
}
