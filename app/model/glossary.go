package model

import (
	"time"
)

// Glossary 词汇表，归属用户，包含若干词条
type Glossary struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	UserID    *uint     `json:"user_id" gorm:"index;comment:所属用户ID"`
	Name      string    `json:"name" gorm:"size:200;not null;comment:名称"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联关系，随词汇表一起删除
	Vocabularies  []Vocabulary   `gorm:"foreignKey:GlossaryID" json:"vocabularies,omitempty"`
	PromptingPlan *PromptingPlan `gorm:"foreignKey:GlossaryID" json:"prompting_plan,omitempty"`
}

// TableName 指定表名
func (Glossary) TableName() string {
	return "glossaries"
}

// Vocabulary 词条
type Vocabulary struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	GlossaryID uint      `json:"glossary_id" gorm:"not null;index"`
	Term       string    `json:"term" gorm:"size:200;not null;comment:词条"`
	Weight     float64   `json:"weight" gorm:"default:1;comment:权重"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Vocabulary) TableName() string {
	return "vocabularies"
}

// PromptingPlan 词汇表对应的组词方案，一个词汇表最多一个
type PromptingPlan struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	GlossaryID uint      `json:"glossary_id" gorm:"not null;uniqueIndex"`
	Template   string    `json:"template" gorm:"type:text;comment:组词模板"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (PromptingPlan) TableName() string {
	return "prompting_plans"
}
