package database

import (
	"prompt-studio/app/model"

	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	// 自动迁移表结构
	return db.AutoMigrate(
		&model.SystemConfig{},
		&model.User{},
		&model.MetaPrompt{},
		&model.PromptTask{},
		&model.GenerationJob{},
		&model.Glossary{},
		&model.Vocabulary{},
		&model.PromptingPlan{},
	)
}
