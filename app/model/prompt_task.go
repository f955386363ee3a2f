package model

import (
	"time"
)

// PromptTask 提示词生成任务
type PromptTask struct {
	ID           uint  `json:"id" gorm:"primarykey"`
	UserID       uint  `json:"user_id" gorm:"not null;index;comment:所属用户ID"`
	MetaPromptID *uint `json:"meta_prompt_id" gorm:"index;comment:引用的提示词模板ID"`

	// 生成参数
	Prompt      string   `json:"prompt" gorm:"type:text;not null;comment:提示词"`
	SDModelName string   `json:"sd_model_name" gorm:"size:200;not null;comment:模型名"`
	SamplerName string   `json:"sampler_name" gorm:"size:100;not null;comment:采样器名"`
	Width       *int     `json:"width" gorm:"not null"`
	Height      *int     `json:"height" gorm:"not null"`
	Seed        *int64   `json:"seed" gorm:"not null"`
	Steps       *int     `json:"steps" gorm:"not null"`
	CfgScale    *float64 `json:"cfg_scale" gorm:"not null"`
	ClipSkip    *int     `json:"clip_skip" gorm:"not null"`

	// 高清修复参数，仅在 HiresFix 为 true 时生效
	HiresFix             bool     `json:"hires_fix" gorm:"default:false"`
	HiresFixUpscalerName string   `json:"hires_fix_upscaler_name" gorm:"size:100"`
	HiresFixUpscale      *float64 `json:"hires_fix_upscale"`
	HiresFixSteps        *int     `json:"hires_fix_steps"`
	HiresFixDenoising    *float64 `json:"hires_fix_denoising"`

	// 生命周期
	Status        TaskStatus  `json:"status" gorm:"size:20;not null;index;comment:状态"`
	Result        *TaskResult `json:"result" gorm:"size:20;comment:生成结果"`
	UniqueTrackID *string     `json:"unique_track_id" gorm:"size:40;uniqueIndex;comment:提交追踪ID"`
	SubmittingAt  *time.Time  `json:"submitting_at" gorm:"comment:提交时间"`
	EnqueuedAt    *time.Time  `json:"enqueued_at" gorm:"index;comment:投递成功时间"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`

	// 关联关系
	User       *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	MetaPrompt *MetaPrompt `gorm:"foreignKey:MetaPromptID" json:"meta_prompt,omitempty"`
}

// TableName 指定表名
func (PromptTask) TableName() string {
	return "prompt_tasks"
}

// NewPromptTask 创建处于 pending 状态的新任务
func NewPromptTask(userID uint) *PromptTask {
	return &PromptTask{
		UserID: userID,
		Status: TaskStatusPending,
	}
}

// IsPending 是否仍可提交
func (t *PromptTask) IsPending() bool {
	return t.Status == TaskStatusPending
}

// HiresFixEnabled 高清修复参数是否需要校验
func (t *PromptTask) HiresFixEnabled() bool {
	return t.HiresFix
}

// Editable 只有待提交的任务可以修改参数
func (t *PromptTask) Editable() bool {
	return t.Status == TaskStatusPending
}

// Deletable 待提交或已结束的任务可以删除，流转中的任务不能删除
func (t *PromptTask) Deletable() bool {
	return t.Status == TaskStatusPending || t.Status.IsTerminal()
}
