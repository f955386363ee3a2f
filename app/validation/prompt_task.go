package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"prompt-studio/app/config"
	"prompt-studio/app/model"
)

const (
	msgBlank       = "can't be blank"
	msgNotInteger  = "must be an integer"
	msgNotIncluded = "is not included in the list"
)

// numericRule 数值字段规则
type numericRule struct {
	field   string
	integer bool
	value   func(*model.PromptTask) (float64, bool)
	bounds  func(config.GenerationConfig) config.Range
	when    func(*model.PromptTask) bool
}

// choiceRule 允许列表字段规则
type choiceRule struct {
	field   string
	value   func(*model.PromptTask) string
	allowed func(config.GenerationConfig, string) bool
	message string
	when    func(*model.PromptTask) bool
}

func always(*model.PromptTask) bool { return true }

func hiresFix(t *model.PromptTask) bool { return t.HiresFixEnabled() }

var choiceRules = []choiceRule{
	{
		field:   "sd_model_name",
		value:   func(t *model.PromptTask) string { return t.SDModelName },
		allowed: config.GenerationConfig.SupportsModel,
		message: "%s isn't supported anymore.",
		when:    always,
	},
	{
		field:   "sampler_name",
		value:   func(t *model.PromptTask) string { return t.SamplerName },
		allowed: config.GenerationConfig.SupportsSampler,
		message: "%s isn't supported anymore.",
		when:    always,
	},
	{
		field:   "hires_fix_upscaler_name",
		value:   func(t *model.PromptTask) string { return t.HiresFixUpscalerName },
		allowed: config.GenerationConfig.SupportsUpscaler,
		message: "%s isn't supported.",
		when:    hiresFix,
	},
}

var numericRules = []numericRule{
	{
		field:   "width",
		integer: true,
		value:   func(t *model.PromptTask) (float64, bool) { return intValue(t.Width) },
		bounds:  func(g config.GenerationConfig) config.Range { return g.Width },
		when:    always,
	},
	{
		field:   "height",
		integer: true,
		value:   func(t *model.PromptTask) (float64, bool) { return intValue(t.Height) },
		bounds:  func(g config.GenerationConfig) config.Range { return g.Height },
		when:    always,
	},
	{
		field:   "seed",
		integer: true,
		value: func(t *model.PromptTask) (float64, bool) {
			if t.Seed == nil {
				return 0, false
			}
			return float64(*t.Seed), true
		},
		bounds: func(g config.GenerationConfig) config.Range { return g.Seed },
		when:   always,
	},
	{
		field:   "steps",
		integer: true,
		value:   func(t *model.PromptTask) (float64, bool) { return intValue(t.Steps) },
		bounds:  func(g config.GenerationConfig) config.Range { return g.Steps },
		when:    always,
	},
	{
		field:  "cfg_scale",
		value:  func(t *model.PromptTask) (float64, bool) { return floatValue(t.CfgScale) },
		bounds: func(g config.GenerationConfig) config.Range { return g.CfgScale },
		when:   always,
	},
	{
		field:   "clip_skip",
		integer: true,
		value:   func(t *model.PromptTask) (float64, bool) { return intValue(t.ClipSkip) },
		bounds:  func(g config.GenerationConfig) config.Range { return g.ClipSkip },
		when:    always,
	},
	{
		field:  "hires_fix_upscale",
		value:  func(t *model.PromptTask) (float64, bool) { return floatValue(t.HiresFixUpscale) },
		bounds: func(g config.GenerationConfig) config.Range { return g.HiresFixUpscale },
		when:   hiresFix,
	},
	{
		field:   "hires_fix_steps",
		integer: true,
		value:   func(t *model.PromptTask) (float64, bool) { return intValue(t.HiresFixSteps) },
		bounds:  func(g config.GenerationConfig) config.Range { return g.HiresFixSteps },
		when:    hiresFix,
	},
	{
		field:  "hires_fix_denoising",
		value:  func(t *model.PromptTask) (float64, bool) { return floatValue(t.HiresFixDenoising) },
		bounds: func(g config.GenerationConfig) config.Range { return g.HiresFixDenoising },
		when:   hiresFix,
	},
}

// ValidatePromptTask 校验任务参数与生命周期字段，返回全部错误
func ValidatePromptTask(t *model.PromptTask, g config.GenerationConfig) Errors {
	var errs Errors

	if strings.TrimSpace(t.Prompt) == "" {
		errs.Add("prompt", msgBlank)
	}
	if t.UserID == 0 {
		errs.Add("user", "must exist")
	}

	for _, r := range choiceRules {
		if !r.when(t) {
			continue
		}
		value := r.value(t)
		if msg, ok := checkChoice(value, r.allowed(g, value), r.message); !ok {
			errs.Add(r.field, msg)
		}
	}

	for _, r := range numericRules {
		if !r.when(t) {
			continue
		}
		v, present := r.value(t)
		if msg, ok := checkNumber(v, present, r.integer, r.bounds(g)); !ok {
			errs.Add(r.field, msg)
		}
	}

	if !t.Status.Valid() {
		errs.Add("status", msgNotIncluded)
	}
	if t.Result != nil && !t.Result.Valid() {
		errs.Add("result", msgNotIncluded)
	}

	return errs
}

// IntegerField 将请求中的数值转换为整数，非整数时记录错误并返回 nil
func IntegerField(errs *Errors, field string, raw *float64) *int64 {
	if raw == nil {
		return nil
	}
	if *raw != math.Trunc(*raw) || math.IsInf(*raw, 0) || *raw >= math.MaxInt64 || *raw < math.MinInt64 {
		errs.Add(field, msgNotInteger)
		return nil
	}
	v := int64(*raw)
	return &v
}

func checkChoice(value string, allowed bool, message string) (string, bool) {
	if strings.TrimSpace(value) == "" {
		return msgBlank, false
	}
	if !allowed {
		return fmt.Sprintf(message, value), false
	}
	return "", true
}

func checkNumber(v float64, present, integer bool, r config.Range) (string, bool) {
	if !present || math.IsNaN(v) {
		return msgBlank, false
	}
	if integer && v != math.Trunc(v) {
		return msgNotInteger, false
	}
	switch {
	case r.Contains(v):
		return "", true
	case v < r.Min:
		return "must be greater than or equal to " + formatBound(r.Min), false
	default:
		return "must be less than or equal to " + formatBound(r.Max), false
	}
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func intValue(p *int) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return float64(*p), true
}

func floatValue(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}
