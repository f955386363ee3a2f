package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"prompt-studio/app/config"
	"prompt-studio/app/jobqueue"
	"prompt-studio/app/logger"

	"github.com/robfig/cron/v3"
)

// deliveredJobRetention 已领取的数据库队列记录保留时间
const deliveredJobRetention = 7 * 24 * time.Hour

// ReaperService 定时回收投递失败的任务：状态已切换为 submitting 但 enqueued_at 为空，
// 队列中没有对应消息。先占用再投递，多个回收进程不会重复投递同一任务。
type ReaperService struct {
	tasks   *PromptTaskService
	queue   jobqueue.JobQueue
	cfg     config.ReaperConfig
	log     *logger.Logger
	now     func() time.Time
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewReaperService 创建回收服务
func NewReaperService(tasks *PromptTaskService, queue jobqueue.JobQueue, cfg config.ReaperConfig, log *logger.Logger) *ReaperService {
	return &ReaperService{
		tasks: tasks,
		queue: queue,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

// Start 按 cron 表达式启动
func (s *ReaperService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.log.Errorf("回收卡住的任务失败: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reaper schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.Infof("任务回收服务已启动: schedule=%s, stale_age=%dm", s.cfg.Schedule, s.cfg.StaleAge)
	return nil
}

// Stop 停止并等待正在执行的回收完成
func (s *ReaperService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("任务回收服务已停止")
}

// RunOnce 执行一次回收，返回重新投递的任务数
func (s *ReaperService) RunOnce(ctx context.Context) (int, error) {
	staleAge := time.Duration(s.cfg.StaleAge) * time.Minute
	batch := s.cfg.Batch
	if batch <= 0 {
		batch = 100
	}

	stale, err := s.tasks.StaleSubmitting(ctx, s.now().Add(-staleAge), batch)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, task := range stale {
		claimed, err := s.tasks.MarkEnqueued(ctx, task.ID, s.now())
		if err != nil {
			s.log.Warnf("占用任务失败: TaskID=%d, 错误: %v", task.ID, err)
			continue
		}
		if !claimed {
			continue
		}
		if err := s.queue.Enqueue(ctx, task.ID); err != nil {
			s.log.Warnf("重新投递任务失败: TaskID=%d, 错误: %v", task.ID, err)
			if err := s.tasks.UnmarkEnqueued(ctx, task.ID); err != nil {
				s.log.Errorf("释放任务失败: TaskID=%d, 错误: %v", task.ID, err)
			}
			continue
		}
		requeued++
	}
	if len(stale) > 0 {
		s.log.Infof("回收卡住的任务: 发现 %d 个, 重新投递 %d 个", len(stale), requeued)
	}

	if dbQueue, ok := s.queue.(*jobqueue.DatabaseQueue); ok {
		if _, err := dbQueue.Cleanup(ctx, s.now().Add(-deliveredJobRetention)); err != nil {
			s.log.Warnf("清理数据库队列失败: %v", err)
		}
	}
	return requeued, nil
}
