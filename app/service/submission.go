package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prompt-studio/app/jobqueue"
	"prompt-studio/app/logger"
	"prompt-studio/app/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrEnqueueFailed 状态已经切换为 submitting，但投递失败，需要回收任务处理
var ErrEnqueueFailed = errors.New("prompt task enqueue failed")

// SubmissionService 负责 pending -> submitting 的唯一一次切换并投递任务
type SubmissionService struct {
	db      *gorm.DB
	queue   jobqueue.JobQueue
	trackID *TrackIDGenerator
	now     func() time.Time
	log     *logger.Logger
}

// SubmissionOption 可选参数
type SubmissionOption func(*SubmissionService)

// WithTrackIDGenerator 替换追踪ID生成器
func WithTrackIDGenerator(g *TrackIDGenerator) SubmissionOption {
	return func(s *SubmissionService) { s.trackID = g }
}

// WithClock 替换时钟
func WithClock(now func() time.Time) SubmissionOption {
	return func(s *SubmissionService) { s.now = now }
}

// NewSubmissionService 创建提交服务
func NewSubmissionService(db *gorm.DB, queue jobqueue.JobQueue, log *logger.Logger, opts ...SubmissionOption) *SubmissionService {
	s := &SubmissionService{
		db:      db,
		queue:   queue,
		trackID: NewTrackIDGenerator(nil),
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit 提交任务。任务不是 pending 或被并发请求抢先时返回 false 且不做任何修改；
// 返回 error 表示数据库或队列故障。
func (s *SubmissionService) Submit(ctx context.Context, task *model.PromptTask) (bool, error) {
	if !task.IsPending() {
		return false, nil
	}

	trackID, err := s.trackID.Next()
	if err != nil {
		return false, err
	}
	submittingAt := s.now()

	// 条件更新是唯一的同步点：只有库中状态仍为 pending 时才会命中
	res := s.db.WithContext(ctx).
		Model(&model.PromptTask{}).
		Where("id = ? AND status = ? AND unique_track_id IS NULL", task.ID, model.TaskStatusPending).
		Updates(map[string]any{
			"status":          model.TaskStatusSubmitting,
			"unique_track_id": trackID,
			"submitting_at":   submittingAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("submit prompt task %d: %w", task.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		s.log.Debug("任务已不是 pending，跳过提交", zap.Uint("task_id", task.ID))
		return false, nil
	}

	task.Status = model.TaskStatusSubmitting
	task.UniqueTrackID = &trackID
	task.SubmittingAt = &submittingAt

	if err := s.queue.Enqueue(ctx, task.ID); err != nil {
		s.log.Error("任务已切换为 submitting 但投递失败，等待回收",
			zap.Uint("task_id", task.ID), zap.String("track_id", trackID), zap.Error(err))
		return false, fmt.Errorf("%w: task %d: %v", ErrEnqueueFailed, task.ID, err)
	}

	// 记录投递成功，回收任务只处理 enqueued_at 为空的任务
	enqueuedAt := s.now()
	res = s.db.WithContext(ctx).
		Model(&model.PromptTask{}).
		Where("id = ? AND enqueued_at IS NULL", task.ID).
		Update("enqueued_at", enqueuedAt)
	if res.Error != nil {
		// 消息已经发出，不能再报告失败
		s.log.Error("记录投递时间失败，任务可能被重复投递",
			zap.Uint("task_id", task.ID), zap.Error(res.Error))
	} else {
		task.EnqueuedAt = &enqueuedAt
	}

	s.log.Info("任务已提交", zap.Uint("task_id", task.ID), zap.String("track_id", trackID))
	return true, nil
}
