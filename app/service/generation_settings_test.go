package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"prompt-studio/app/config"
	"prompt-studio/app/logger"
	"prompt-studio/app/model"
	"prompt-studio/app/service"
	"prompt-studio/app/testsupport"
)

func TestSettingsOverridesApplyOnTopOfFile(t *testing.T) {
	db := testsupport.OpenDB(t)
	base := testsupport.GenerationSettings()
	svc := service.NewGenerationSettingsService(db, logger.NewNop(), func() (config.GenerationConfig, error) {
		return base, nil
	})
	ctx := context.Background()

	if err := svc.SetOverride(ctx, "sampler_names", json.RawMessage(`["UniPC"]`)); err != nil {
		t.Fatalf("SetOverride failed: %v", err)
	}
	if err := svc.SetOverride(ctx, "steps", json.RawMessage(`{"min":10,"max":60}`)); err != nil {
		t.Fatalf("SetOverride failed: %v", err)
	}

	g, err := svc.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if !slices.Equal(g.SamplerNames, []string{"UniPC"}) {
		t.Fatalf("expected sampler override, got %v", g.SamplerNames)
	}
	if g.Steps != (config.Range{Min: 10, Max: 60}) {
		t.Fatalf("expected steps override, got %+v", g.Steps)
	}
	if g.Width != base.Width {
		t.Fatalf("untouched keys must keep file values, got %+v", g.Width)
	}

	// 覆盖同一键时更新而不是新增
	if err := svc.SetOverride(ctx, "steps", json.RawMessage(`{"min":5,"max":50}`)); err != nil {
		t.Fatalf("SetOverride failed: %v", err)
	}
	var count int64
	db.Model(&model.SystemConfig{}).Where("config_key = ?", "steps").Count(&count)
	if count != 1 {
		t.Fatalf("expected a single steps row, got %d", count)
	}
	if g, _ = svc.Current(ctx); g.Steps.Max != 50 {
		t.Fatalf("expected updated override to be visible, got %+v", g.Steps)
	}

	if err := svc.ClearOverride(ctx, "steps"); err != nil {
		t.Fatalf("ClearOverride failed: %v", err)
	}
	if g, _ = svc.Current(ctx); g.Steps != base.Steps {
		t.Fatalf("expected file value after clear, got %+v", g.Steps)
	}
}

func TestSettingsRejectBadOverrides(t *testing.T) {
	db := testsupport.OpenDB(t)
	svc := service.NewGenerationSettingsService(db, logger.NewNop(), func() (config.GenerationConfig, error) {
		return testsupport.GenerationSettings(), nil
	})
	ctx := context.Background()

	if err := svc.SetOverride(ctx, "vae", json.RawMessage(`["x"]`)); !errors.Is(err, service.ErrUnknownSettingKey) {
		t.Fatalf("expected ErrUnknownSettingKey, got %v", err)
	}
	if err := svc.SetOverride(ctx, "width", json.RawMessage(`{"min":900,"max":600}`)); !errors.Is(err, service.ErrInvalidSettingValue) {
		t.Fatal("expected inverted range to be rejected")
	}
	if err := svc.SetOverride(ctx, "sd_model_names", json.RawMessage(`"single"`)); !errors.Is(err, service.ErrInvalidSettingValue) {
		t.Fatal("expected non-array model list to be rejected")
	}
	if rows, _ := svc.Overrides(ctx); len(rows) != 0 {
		t.Fatalf("nothing should be stored, got %v", rows)
	}
}

func TestSettingsSkipCorruptRows(t *testing.T) {
	db := testsupport.OpenDB(t)
	base := testsupport.GenerationSettings()
	svc := service.NewGenerationSettingsService(db, logger.NewNop(), func() (config.GenerationConfig, error) {
		return base, nil
	})

	row := model.SystemConfig{ConfigKey: "cfg_scale", ConfigValue: "not json", ConfigType: model.TypeJSON, Category: model.CategoryGeneration}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("insert row: %v", err)
	}
	svc.Invalidate()

	g, err := svc.Current(context.Background())
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if g.CfgScale != base.CfgScale {
		t.Fatalf("corrupt override must be ignored, got %+v", g.CfgScale)
	}
}

func TestValidationSeesCurrentSettings(t *testing.T) {
	db := testsupport.OpenDB(t)
	settings := service.NewGenerationSettingsService(db, logger.NewNop(), func() (config.GenerationConfig, error) {
		return testsupport.GenerationSettings(), nil
	})
	tasks := service.NewPromptTaskService(db, settings, logger.NewNop())
	user := testsupport.CreateUser(t, db, "erin")
	ctx := context.Background()

	task := testsupport.ValidTask(user.ID)
	task.SamplerName = "UniPC"
	if err := tasks.Validate(ctx, task); err == nil {
		t.Fatal("UniPC should be rejected before it is allowed")
	}

	if err := settings.SetOverride(ctx, "sampler_names", json.RawMessage(`["Euler a","UniPC"]`)); err != nil {
		t.Fatalf("SetOverride failed: %v", err)
	}
	if err := tasks.Validate(ctx, task); err != nil {
		t.Fatalf("UniPC should be accepted after the override, got %v", err)
	}
}

func TestSettingKeysCoverEveryOverride(t *testing.T) {
	keys := service.SettingKeys()
	if len(keys) != 12 {
		t.Fatalf("expected 12 keys, got %v", keys)
	}
	for _, k := range []string{"sd_model_names", "hires_upscaler_names", "hires_fix_denoising"} {
		if !slices.Contains(keys, k) {
			t.Fatalf("missing key %s", k)
		}
	}
}
