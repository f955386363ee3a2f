package database

import (
	"errors"
	"fmt"

	"prompt-studio/app/config"
	"prompt-studio/app/logger"
	"prompt-studio/app/model"
	"prompt-studio/app/utils"

	"gorm.io/gorm"
)

// InitAdminUser 根据配置创建或同步管理员账户
func InitAdminUser(cfg *config.Config, log *logger.Logger) error {
	if cfg.Server.Username == "" || cfg.Server.Password == "" {
		return fmt.Errorf("管理员账户配置不能为空，请在配置文件中设置 username 和 password")
	}
	return ensureAdmin(DB, cfg.Server.Username, cfg.Server.Password, log)
}

func ensureAdmin(db *gorm.DB, username, password string, log *logger.Logger) error {
	var admin model.User
	err := db.Where("is_admin = ?", true).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		hashed, err := utils.HashPassword(password)
		if err != nil {
			return fmt.Errorf("哈希密码失败: %w", err)
		}
		admin = model.User{
			Username: username,
			Password: hashed,
			Email:    "admin@prompt-studio.local",
			IsActive: true,
			IsAdmin:  true,
		}
		if err := db.Create(&admin).Error; err != nil {
			return fmt.Errorf("创建管理员账户失败: %w", err)
		}
		log.Infof("管理员账户 '%s' 创建成功", username)
		return nil
	}
	if err != nil {
		return fmt.Errorf("查询管理员账户失败: %w", err)
	}

	updates := map[string]any{}
	if admin.Username != username {
		var count int64
		if err := db.Model(&model.User{}).Where("username = ? AND id != ?", username, admin.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("用户名 '%s' 已被其他用户使用，无法更新管理员用户名", username)
		}
		updates["username"] = username
	}
	if !utils.VerifyPassword(password, admin.Password) {
		hashed, err := utils.HashPassword(password)
		if err != nil {
			return fmt.Errorf("哈希密码失败: %w", err)
		}
		updates["password"] = hashed
	}

	if len(updates) == 0 {
		log.Infof("管理员 '%s' 已存在，无需更新", username)
		return nil
	}
	if err := db.Model(&admin).Updates(updates).Error; err != nil {
		return fmt.Errorf("更新管理员账户失败: %w", err)
	}
	log.Infof("管理员 '%s' 已同步配置", username)
	return nil
}
