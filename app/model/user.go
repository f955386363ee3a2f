package model

import (
	"time"

	"gorm.io/gorm"
)

// User 任务、模板与词汇表的所有者
type User struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	Username  string         `json:"username" gorm:"uniqueIndex;not null"`
	Password  string         `json:"-" gorm:"not null"` // bcrypt 哈希
	Email     string         `json:"email"`
	IsActive  bool           `json:"is_active" gorm:"default:true"`
	IsAdmin   bool           `json:"is_admin" gorm:"default:false"` // 可修改生成参数覆盖项
	LastLogin *time.Time     `json:"last_login"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// CanLogin 被禁用或已删除的账号不能登录
func (u *User) CanLogin() bool {
	return u.IsActive && !u.DeletedAt.Valid
}
