package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prompt-studio/app/config"
	"prompt-studio/app/logger"
	"prompt-studio/app/model"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsProvider 提供当前生效的生成参数配置，每次校验都应重新获取
type SettingsProvider interface {
	Current(ctx context.Context) (config.GenerationConfig, error)
}

// StaticSettings 固定配置，主要用于测试
type StaticSettings config.GenerationConfig

func (s StaticSettings) Current(context.Context) (config.GenerationConfig, error) {
	return config.GenerationConfig(s), nil
}

var (
	// ErrUnknownSettingKey 不支持覆盖的配置键
	ErrUnknownSettingKey = errors.New("unknown generation setting")
	// ErrInvalidSettingValue 覆盖值格式错误或区间非法
	ErrInvalidSettingValue = errors.New("invalid generation setting value")
)

const overridesCacheKey = "generation_overrides"

// 允许在数据库中覆盖的键
var (
	listSettingKeys  = []string{"sd_model_names", "sampler_names", "hires_upscaler_names"}
	rangeSettingKeys = []string{"width", "height", "seed", "steps", "cfg_scale", "clip_skip", "hires_fix_upscale", "hires_fix_steps", "hires_fix_denoising"}
)

// GenerationSettingsService 以配置文件为基础，叠加 system_configs 中 generation 分类的覆盖值
type GenerationSettingsService struct {
	db    *gorm.DB
	log   *logger.Logger
	cache *cache.Cache
	base  func() (config.GenerationConfig, error)
}

// NewGenerationSettingsService 创建生成参数服务，base 每次调用都应返回最新的文件配置
func NewGenerationSettingsService(db *gorm.DB, log *logger.Logger, base func() (config.GenerationConfig, error)) *GenerationSettingsService {
	if base == nil {
		base = config.LoadGeneration
	}
	return &GenerationSettingsService{
		db:    db,
		log:   log,
		cache: cache.New(30*time.Second, 10*time.Minute),
		base:  base,
	}
}

// Current 返回当前生效的配置
func (s *GenerationSettingsService) Current(ctx context.Context) (config.GenerationConfig, error) {
	g, err := s.base()
	if err != nil {
		return config.GenerationConfig{}, err
	}

	overrides, err := s.overrides(ctx)
	if err != nil {
		return config.GenerationConfig{}, err
	}
	for _, o := range overrides {
		if err := applyOverride(&g, o.ConfigKey, []byte(o.ConfigValue)); err != nil {
			// 坏数据不应阻断校验，记录后跳过
			s.log.Warnf("忽略无效的生成参数覆盖 %s: %v", o.ConfigKey, err)
		}
	}
	return g, nil
}

// Overrides 列出数据库中的覆盖项
func (s *GenerationSettingsService) Overrides(ctx context.Context) ([]model.SystemConfig, error) {
	return s.overrides(ctx)
}

// SetOverride 写入覆盖项，value 为 JSON：列表键为字符串数组，区间键为 {"min":..,"max":..}
func (s *GenerationSettingsService) SetOverride(ctx context.Context, key string, value json.RawMessage) error {
	var probe config.GenerationConfig
	if err := applyOverride(&probe, key, value); err != nil {
		return err
	}

	row := model.SystemConfig{
		ConfigKey:   key,
		ConfigValue: string(value),
		ConfigType:  model.TypeJSON,
		Category:    model.CategoryGeneration,
		Description: "生成参数覆盖: " + key,
		IsVisible:   true,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "config_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"config_value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("保存生成参数覆盖失败: %w", err)
	}

	s.cache.Delete(overridesCacheKey)
	s.log.Infof("生成参数覆盖已更新: %s=%s", key, string(value))
	return nil
}

// ClearOverride 删除覆盖项，恢复为配置文件中的值
func (s *GenerationSettingsService) ClearOverride(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Unscoped().
		Where("category = ? AND config_key = ?", model.CategoryGeneration, key).
		Delete(&model.SystemConfig{}).Error
	if err != nil {
		return fmt.Errorf("删除生成参数覆盖失败: %w", err)
	}
	s.cache.Delete(overridesCacheKey)
	s.log.Infof("生成参数覆盖已删除: %s", key)
	return nil
}

// Invalidate 丢弃缓存，配置文件变化时调用
func (s *GenerationSettingsService) Invalidate() {
	s.cache.Delete(overridesCacheKey)
}

func (s *GenerationSettingsService) overrides(ctx context.Context) ([]model.SystemConfig, error) {
	if cached, ok := s.cache.Get(overridesCacheKey); ok {
		return cached.([]model.SystemConfig), nil
	}

	var rows []model.SystemConfig
	if err := s.db.WithContext(ctx).
		Where("category = ?", model.CategoryGeneration).
		Order("sort_order ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("读取生成参数覆盖失败: %w", err)
	}
	s.cache.SetDefault(overridesCacheKey, rows)
	return rows, nil
}

func applyOverride(g *config.GenerationConfig, key string, value []byte) error {
	if list := listTarget(g, key); list != nil {
		var names []string
		if err := json.Unmarshal(value, &names); err != nil {
			return fmt.Errorf("%w: %s 需要字符串数组: %v", ErrInvalidSettingValue, key, err)
		}
		*list = names
		return nil
	}
	if r := rangeTarget(g, key); r != nil {
		var parsed config.Range
		if err := json.Unmarshal(value, &parsed); err != nil {
			return fmt.Errorf("%w: %s 需要 {\"min\":..,\"max\":..}: %v", ErrInvalidSettingValue, key, err)
		}
		if parsed.Min > parsed.Max {
			return fmt.Errorf("%w: %s 区间非法: min %v > max %v", ErrInvalidSettingValue, key, parsed.Min, parsed.Max)
		}
		*r = parsed
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownSettingKey, key)
}

func listTarget(g *config.GenerationConfig, key string) *[]string {
	switch key {
	case "sd_model_names":
		return &g.SDModelNames
	case "sampler_names":
		return &g.SamplerNames
	case "hires_upscaler_names":
		return &g.HiresUpscalerNames
	}
	return nil
}

func rangeTarget(g *config.GenerationConfig, key string) *config.Range {
	switch key {
	case "width":
		return &g.Width
	case "height":
		return &g.Height
	case "seed":
		return &g.Seed
	case "steps":
		return &g.Steps
	case "cfg_scale":
		return &g.CfgScale
	case "clip_skip":
		return &g.ClipSkip
	case "hires_fix_upscale":
		return &g.HiresFixUpscale
	case "hires_fix_steps":
		return &g.HiresFixSteps
	case "hires_fix_denoising":
		return &g.HiresFixDenoising
	}
	return nil
}

// SettingKeys 可覆盖的全部键
func SettingKeys() []string {
	keys := make([]string, 0, len(listSettingKeys)+len(rangeSettingKeys))
	keys = append(keys, listSettingKeys...)
	return append(keys, rangeSettingKeys...)
}
