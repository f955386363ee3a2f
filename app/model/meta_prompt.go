package model

import (
	"time"
)

// MetaPrompt 可复用的提示词模板
type MetaPrompt struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	UserID    uint      `json:"user_id" gorm:"not null;index;comment:所属用户ID"`
	Name      string    `json:"name" gorm:"size:200;not null;comment:模板名称"`
	Body      string    `json:"body" gorm:"type:text;comment:模板内容"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (MetaPrompt) TableName() string {
	return "meta_prompts"
}
