package config

import (
	"fmt"
	"slices"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Range 闭区间
type Range struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// Contains 判断是否落在区间内（包含两端）
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// GenerationConfig 生成参数的允许列表与取值范围，运行时可能变化
type GenerationConfig struct {
	SDModelNames       []string `mapstructure:"sd_model_names" json:"sd_model_names"`
	SamplerNames       []string `mapstructure:"sampler_names" json:"sampler_names"`
	HiresUpscalerNames []string `mapstructure:"hires_upscaler_names" json:"hires_upscaler_names"`
	Width              Range    `mapstructure:"width" json:"width"`
	Height             Range    `mapstructure:"height" json:"height"`
	Seed               Range    `mapstructure:"seed" json:"seed"`
	Steps              Range    `mapstructure:"steps" json:"steps"`
	CfgScale           Range    `mapstructure:"cfg_scale" json:"cfg_scale"`
	ClipSkip           Range    `mapstructure:"clip_skip" json:"clip_skip"`
	HiresFixUpscale    Range    `mapstructure:"hires_fix_upscale" json:"hires_fix_upscale"`
	HiresFixSteps      Range    `mapstructure:"hires_fix_steps" json:"hires_fix_steps"`
	HiresFixDenoising  Range    `mapstructure:"hires_fix_denoising" json:"hires_fix_denoising"`
}

// SupportsModel 模型是否在允许列表中
func (g GenerationConfig) SupportsModel(name string) bool {
	return slices.Contains(g.SDModelNames, name)
}

// SupportsSampler 采样器是否在允许列表中
func (g GenerationConfig) SupportsSampler(name string) bool {
	return slices.Contains(g.SamplerNames, name)
}

// SupportsUpscaler 放大算法是否在允许列表中
func (g GenerationConfig) SupportsUpscaler(name string) bool {
	return slices.Contains(g.HiresUpscalerNames, name)
}

// Validate 检查区间是否合法
func (g GenerationConfig) Validate() error {
	ranges := map[string]Range{
		"width":               g.Width,
		"height":              g.Height,
		"seed":                g.Seed,
		"steps":               g.Steps,
		"cfg_scale":           g.CfgScale,
		"clip_skip":           g.ClipSkip,
		"hires_fix_upscale":   g.HiresFixUpscale,
		"hires_fix_steps":     g.HiresFixSteps,
		"hires_fix_denoising": g.HiresFixDenoising,
	}
	for name, r := range ranges {
		if r.Min > r.Max {
			return fmt.Errorf("generation.%s 区间非法: min %v > max %v", name, r.Min, r.Max)
		}
	}
	return nil
}

// LoadGeneration 从 viper 读取当前的生成参数配置
func LoadGeneration() (GenerationConfig, error) {
	// 整体解码才能让配置文件中的部分字段与默认值合并
	var c struct {
		Generation GenerationConfig `mapstructure:"generation"`
	}
	if err := viper.Unmarshal(&c); err != nil {
		return GenerationConfig{}, fmt.Errorf("解码生成参数配置失败: %w", err)
	}
	return c.Generation, nil
}

// WatchGeneration 监听配置文件变化，变化后回调最新的生成参数配置
func WatchGeneration(onChange func(GenerationConfig, error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		g, err := LoadGeneration()
		if err == nil {
			err = g.Validate()
		}
		onChange(g, err)
	})
	viper.WatchConfig()
}

func setGenerationDefaults() {
	viper.SetDefault("generation.sd_model_names", []string{
		"sd_xl_base_1.0.safetensors",
		"v1-5-pruned-emaonly.safetensors",
	})
	viper.SetDefault("generation.sampler_names", []string{
		"Euler a",
		"Euler",
		"DPM++ 2M Karras",
		"DPM++ SDE Karras",
		"DDIM",
	})
	viper.SetDefault("generation.hires_upscaler_names", []string{
		"Latent",
		"ESRGAN_4x",
		"R-ESRGAN 4x+",
	})
	setRangeDefault("width", 512, 2048)
	setRangeDefault("height", 512, 2048)
	setRangeDefault("seed", 0, 4294967295)
	setRangeDefault("steps", 1, 150)
	setRangeDefault("cfg_scale", 1, 30)
	setRangeDefault("clip_skip", 1, 12)
	setRangeDefault("hires_fix_upscale", 1, 4)
	setRangeDefault("hires_fix_steps", 0, 150)
	setRangeDefault("hires_fix_denoising", 0, 1)
}

func setRangeDefault(key string, lo, hi float64) {
	viper.SetDefault("generation."+key+".min", lo)
	viper.SetDefault("generation."+key+".max", hi)
}
