// Package testsupport 测试辅助：临时数据库、默认生成参数、测试用户
package testsupport

import (
	"path/filepath"
	"testing"

	"prompt-studio/app/config"
	"prompt-studio/app/database"
	"prompt-studio/app/model"

	"gorm.io/gorm"
)

// OpenDB 在临时目录中创建已迁移的 sqlite 数据库
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// GenerationSettings 与默认配置一致的生成参数
func GenerationSettings() config.GenerationConfig {
	return config.GenerationConfig{
		SDModelNames:       []string{"sd_xl_base_1.0.safetensors", "v1-5-pruned-emaonly.safetensors"},
		SamplerNames:       []string{"Euler a", "Euler", "DPM++ 2M Karras", "DDIM"},
		HiresUpscalerNames: []string{"Latent", "ESRGAN_4x"},
		Width:              config.Range{Min: 512, Max: 2048},
		Height:             config.Range{Min: 512, Max: 2048},
		Seed:               config.Range{Min: 0, Max: 4294967295},
		Steps:              config.Range{Min: 1, Max: 150},
		CfgScale:           config.Range{Min: 1, Max: 30},
		ClipSkip:           config.Range{Min: 1, Max: 12},
		HiresFixUpscale:    config.Range{Min: 1, Max: 4},
		HiresFixSteps:      config.Range{Min: 0, Max: 150},
		HiresFixDenoising:  config.Range{Min: 0, Max: 1},
	}
}

// CreateUser 插入一个测试用户
func CreateUser(t testing.TB, db *gorm.DB, username string) *model.User {
	t.Helper()

	user := &model.User{Username: username, Password: "x", Email: username + "@example.com", IsActive: true}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// ValidTask 构造一个可以通过校验的 pending 任务
func ValidTask(userID uint) *model.PromptTask {
	width, height, steps, clipSkip := 512, 512, 20, 1
	seed := int64(0)
	cfgScale := 7.0

	task := model.NewPromptTask(userID)
	task.Prompt = "a lighthouse at dusk, volumetric light"
	task.SDModelName = "sd_xl_base_1.0.safetensors"
	task.SamplerName = "Euler a"
	task.Width = &width
	task.Height = &height
	task.Seed = &seed
	task.Steps = &steps
	task.CfgScale = &cfgScale
	task.ClipSkip = &clipSkip
	return task
}
