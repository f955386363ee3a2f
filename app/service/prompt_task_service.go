package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prompt-studio/app/logger"
	"prompt-studio/app/model"
	"prompt-studio/app/validation"

	"gorm.io/gorm"
)

var (
	// ErrTaskNotFound 任务不存在或不属于当前用户
	ErrTaskNotFound = errors.New("prompt task not found")
	// ErrTaskNotEditable 任务已离开 pending，参数不能再修改
	ErrTaskNotEditable = errors.New("prompt task is no longer editable")
	// ErrTaskNotDeletable 任务正在流转中，不能删除
	ErrTaskNotDeletable = errors.New("prompt task cannot be deleted while in flight")
	// ErrReservedStatus pending 与 submitting 只能由本服务写入
	ErrReservedStatus = errors.New("status is reserved for submission")
)

// 修改任务时写入的参数列，生命周期字段不在其中
var parameterColumns = []string{
	"meta_prompt_id", "prompt", "sd_model_name", "sampler_name",
	"width", "height", "seed", "steps", "cfg_scale", "clip_skip",
	"hires_fix", "hires_fix_upscaler_name", "hires_fix_upscale", "hires_fix_steps", "hires_fix_denoising",
	"updated_at",
}

// PromptTaskService 提示词任务的创建、查询、修改与生成节点回写
type PromptTaskService struct {
	db       *gorm.DB
	settings SettingsProvider
	log      *logger.Logger
}

// NewPromptTaskService 创建任务服务
func NewPromptTaskService(db *gorm.DB, settings SettingsProvider, log *logger.Logger) *PromptTaskService {
	return &PromptTaskService{db: db, settings: settings, log: log}
}

// TaskFilter 列表查询条件
type TaskFilter struct {
	UserID   uint
	Status   *model.TaskStatus
	Page     int
	PageSize int
}

// Normalize 补齐分页参数
func (f *TaskFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}
}

// Validate 按当前配置校验任务，返回 validation.Errors 或 nil
func (s *PromptTaskService) Validate(ctx context.Context, task *model.PromptTask) error {
	g, err := s.settings.Current(ctx)
	if err != nil {
		return fmt.Errorf("load generation settings: %w", err)
	}
	errs := validation.ValidatePromptTask(task, g)
	if task.MetaPromptID != nil {
		ok, err := s.metaPromptOwned(ctx, *task.MetaPromptID, task.UserID)
		if err != nil {
			return err
		}
		if !ok {
			errs.Add("meta_prompt", "must exist")
		}
	}
	return errs.Err()
}

// Create 校验后保存新任务
func (s *PromptTaskService) Create(ctx context.Context, task *model.PromptTask) error {
	if task.Status == "" {
		task.Status = model.TaskStatusPending
	}
	if err := s.Validate(ctx, task); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create prompt task: %w", err)
	}
	s.log.Infof("任务已创建: TaskID=%d, UserID=%d", task.ID, task.UserID)
	return nil
}

// Get 获取用户的任务
func (s *PromptTaskService) Get(ctx context.Context, userID, id uint) (*model.PromptTask, error) {
	var task model.PromptTask
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt task %d: %w", id, err)
	}
	return &task, nil
}

// List 分页列出用户的任务
func (s *PromptTaskService) List(ctx context.Context, f TaskFilter) ([]model.PromptTask, int64, error) {
	f.Normalize()

	query := s.db.WithContext(ctx).Model(&model.PromptTask{}).Where("user_id = ?", f.UserID)
	if f.Status != nil {
		query = query.Where("status = ?", *f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count prompt tasks: %w", err)
	}

	var tasks []model.PromptTask
	if err := query.Order("created_at DESC, id DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&tasks).Error; err != nil {
		return nil, 0, fmt.Errorf("list prompt tasks: %w", err)
	}
	return tasks, total, nil
}

// Update 修改 pending 任务的参数，保存前重新校验
func (s *PromptTaskService) Update(ctx context.Context, userID, id uint, mutate func(*model.PromptTask)) (*model.PromptTask, error) {
	task, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !task.Editable() {
		return nil, ErrTaskNotEditable
	}

	mutate(task)
	if err := s.Validate(ctx, task); err != nil {
		return nil, err
	}

	// 带状态条件保存，避免覆盖并发提交
	res := s.db.WithContext(ctx).Model(task).
		Where("status = ?", model.TaskStatusPending).
		Select(parameterColumns).
		Updates(task)
	if res.Error != nil {
		return nil, fmt.Errorf("update prompt task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrTaskNotEditable
	}
	return s.Get(ctx, userID, id)
}

// Delete 删除 pending 或已结束的任务
func (s *PromptTaskService) Delete(ctx context.Context, userID, id uint) error {
	task, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if !task.Deletable() {
		return ErrTaskNotDeletable
	}
	res := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", task.ID, task.Status).
		Delete(&model.PromptTask{})
	if res.Error != nil {
		return fmt.Errorf("delete prompt task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotDeletable
	}
	s.log.Infof("任务已删除: TaskID=%d", id)
	return nil
}

// WorkerUpdate 生成节点回写的状态与结果
type WorkerUpdate struct {
	Status string  `json:"status"`
	Result *string `json:"result"`
}

// ApplyWorkerUpdate 写入生成节点上报的状态与结果，非法枚举值直接拒绝
func (s *PromptTaskService) ApplyWorkerUpdate(ctx context.Context, id uint, update WorkerUpdate) (*model.PromptTask, error) {
	var errs validation.Errors
	status, err := model.ParseTaskStatus(update.Status)
	if err != nil {
		errs.Add("status", "is not included in the list")
	}
	var result *model.TaskResult
	if update.Result != nil && *update.Result != "" {
		r, err := model.ParseTaskResult(*update.Result)
		if err != nil {
			errs.Add("result", "is not included in the list")
		} else {
			result = &r
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	if status == model.TaskStatusPending || status == model.TaskStatusSubmitting {
		return nil, ErrReservedStatus
	}

	updates := map[string]any{"status": status}
	if result != nil {
		updates["result"] = *result
	}
	res := s.db.WithContext(ctx).Model(&model.PromptTask{}).
		Where("id = ? AND status <> ?", id, model.TaskStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("apply worker update to task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrTaskNotFound
	}

	var task model.PromptTask
	if err := s.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, fmt.Errorf("reload prompt task %d: %w", id, err)
	}
	s.log.Infof("生成节点回写: TaskID=%d, Status=%s", id, status)
	return &task, nil
}

// StaleSubmitting 查找提交时间早于 cutoff、停留在 submitting 且没有投递成功的任务
func (s *PromptTaskService) StaleSubmitting(ctx context.Context, cutoff time.Time, limit int) ([]model.PromptTask, error) {
	var tasks []model.PromptTask
	err := s.db.WithContext(ctx).
		Where("status = ? AND enqueued_at IS NULL AND submitting_at < ?", model.TaskStatusSubmitting, cutoff).
		Order("submitting_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("find stale submitting tasks: %w", err)
	}
	return tasks, nil
}

// MarkEnqueued 在重新投递前占用任务，已被占用或已投递时返回 false
func (s *PromptTaskService) MarkEnqueued(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.PromptTask{}).
		Where("id = ? AND status = ? AND enqueued_at IS NULL", id, model.TaskStatusSubmitting).
		Update("enqueued_at", at)
	if res.Error != nil {
		return false, fmt.Errorf("mark prompt task %d enqueued: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UnmarkEnqueued 投递失败后释放占用，下次回收时重试
func (s *PromptTaskService) UnmarkEnqueued(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&model.PromptTask{}).
		Where("id = ? AND status = ?", id, model.TaskStatusSubmitting).
		Update("enqueued_at", nil).Error
	if err != nil {
		return fmt.Errorf("unmark prompt task %d enqueued: %w", id, err)
	}
	return nil
}

// CountByStatus 各状态任务数
func (s *PromptTaskService) CountByStatus(ctx context.Context, userID uint) (map[model.TaskStatus]int64, error) {
	counts := make(map[model.TaskStatus]int64, len(model.TaskStatuses))
	for _, status := range model.TaskStatuses {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.PromptTask{}).
			Where("user_id = ? AND status = ?", userID, status).
			Count(&count).Error; err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, nil
}

func (s *PromptTaskService) metaPromptOwned(ctx context.Context, id, userID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.MetaPrompt{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check meta prompt %d: %w", id, err)
	}
	return count > 0, nil
}
