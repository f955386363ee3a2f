package model

import (
	"time"
)

// JobStatus 队列任务状态
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"    // 等待生成节点领取
	JobStatusDelivered JobStatus = "delivered" // 已被领取
)

// GenerationJob 数据库队列中的一条投递记录，只保存任务ID
type GenerationJob struct {
	ID           uint       `json:"id" gorm:"primarykey"`
	MessageID    string     `json:"message_id" gorm:"size:36;uniqueIndex;comment:消息ID"`
	PromptTaskID uint       `json:"prompt_task_id" gorm:"not null;index;comment:提示词任务ID"`
	Status       JobStatus  `json:"status" gorm:"size:20;default:'queued';index"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeliveredAt  *time.Time `json:"delivered_at"`
}

// TableName 指定表名
func (GenerationJob) TableName() string {
	return "generation_jobs"
}
