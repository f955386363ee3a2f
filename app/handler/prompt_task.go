package handler

import (
	"errors"
	"net/http"
	"strconv"

	"prompt-studio/app/logger"
	"prompt-studio/app/model"
	"prompt-studio/app/service"
	"prompt-studio/app/validation"

	"github.com/gin-gonic/gin"
)

// PromptTaskHandler 提示词任务接口
type PromptTaskHandler struct {
	tasks     *service.PromptTaskService
	submitter *service.SubmissionService
	log       *logger.Logger
}

// NewPromptTaskHandler 创建任务处理器
func NewPromptTaskHandler(tasks *service.PromptTaskService, submitter *service.SubmissionService, log *logger.Logger) *PromptTaskHandler {
	return &PromptTaskHandler{tasks: tasks, submitter: submitter, log: log}
}

// PromptTaskRequest 创建或修改任务的请求体，数值先按浮点数接收，再检查是否为整数
type PromptTaskRequest struct {
	MetaPromptID         *uint    `json:"meta_prompt_id"`
	Prompt               string   `json:"prompt"`
	SDModelName          string   `json:"sd_model_name"`
	SamplerName          string   `json:"sampler_name"`
	Width                *float64 `json:"width"`
	Height               *float64 `json:"height"`
	Seed                 *float64 `json:"seed"`
	Steps                *float64 `json:"steps"`
	CfgScale             *float64 `json:"cfg_scale"`
	ClipSkip             *float64 `json:"clip_skip"`
	HiresFix             bool     `json:"hires_fix"`
	HiresFixUpscalerName string   `json:"hires_fix_upscaler_name"`
	HiresFixUpscale      *float64 `json:"hires_fix_upscale"`
	HiresFixSteps        *float64 `json:"hires_fix_steps"`
	HiresFixDenoising    *float64 `json:"hires_fix_denoising"`
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

// apply 写入任务参数，返回整数字段的格式错误
func (r *PromptTaskRequest) apply(t *model.PromptTask) validation.Errors {
	var errs validation.Errors

	t.MetaPromptID = r.MetaPromptID
	t.Prompt = r.Prompt
	t.SDModelName = r.SDModelName
	t.SamplerName = r.SamplerName
	t.Width = intPtr(validation.IntegerField(&errs, "width", r.Width))
	t.Height = intPtr(validation.IntegerField(&errs, "height", r.Height))
	t.Seed = validation.IntegerField(&errs, "seed", r.Seed)
	t.Steps = intPtr(validation.IntegerField(&errs, "steps", r.Steps))
	t.CfgScale = r.CfgScale
	t.ClipSkip = intPtr(validation.IntegerField(&errs, "clip_skip", r.ClipSkip))

	t.HiresFix = r.HiresFix
	t.HiresFixUpscalerName = r.HiresFixUpscalerName
	t.HiresFixUpscale = r.HiresFixUpscale
	t.HiresFixDenoising = r.HiresFixDenoising
	if r.HiresFix {
		t.HiresFixSteps = intPtr(validation.IntegerField(&errs, "hires_fix_steps", r.HiresFixSteps))
	} else {
		// 高清修复关闭时不报错，非整数直接丢弃
		var ignored validation.Errors
		t.HiresFixSteps = intPtr(validation.IntegerField(&ignored, "hires_fix_steps", r.HiresFixSteps))
	}
	return errs
}

// decodeErrors 合并整数格式错误与其余字段的校验结果
func (h *PromptTaskHandler) decodeErrors(c *gin.Context, t *model.PromptTask, errs validation.Errors) error {
	err := h.tasks.Validate(c.Request.Context(), t)
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		errs.Merge(verrs)
	} else if err != nil {
		return err
	}
	return errs
}

// Create 创建任务
func (h *PromptTaskHandler) Create(c *gin.Context) {
	var req PromptTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	task := model.NewPromptTask(currentUserID(c))
	if errs := req.apply(task); len(errs) > 0 {
		writeError(c, h.decodeErrors(c, task, errs))
		return
	}
	if err := h.tasks.Create(c.Request.Context(), task); err != nil {
		writeError(c, err)
		return
	}
	created(c, task, "任务已创建")
}

// List 分页列出任务，可按状态过滤
func (h *PromptTaskHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := service.TaskFilter{UserID: currentUserID(c), Page: page, PageSize: pageSize}

	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseTaskStatus(raw)
		if err != nil {
			var errs validation.Errors
			errs.Add("status", "is not included in the list")
			writeError(c, errs)
			return
		}
		filter.Status = &status
	}

	tasks, total, err := h.tasks.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	filter.Normalize()
	success(c, PageData{Items: tasks, Total: total, Page: filter.Page, PageSize: filter.PageSize}, "success")
}

// Get 获取任务详情
func (h *PromptTaskHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	task, err := h.tasks.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, task, "success")
}

// Update 整体替换 pending 任务的参数
func (h *PromptTaskHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req PromptTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	userID := currentUserID(c)
	scratch := model.NewPromptTask(userID)
	if errs := req.apply(scratch); len(errs) > 0 {
		writeError(c, h.decodeErrors(c, scratch, errs))
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), userID, id, func(t *model.PromptTask) {
		req.apply(t)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, task, "任务已更新")
}

// Delete 删除任务
func (h *PromptTaskHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		writeError(c, err)
		return
	}
	success(c, nil, "任务已删除")
}

// Submit 提交任务，只有第一次调用会成功
func (h *PromptTaskHandler) Submit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	task, err := h.tasks.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	submitted, err := h.submitter.Submit(c.Request.Context(), task)
	if err != nil {
		writeError(c, err)
		return
	}
	if !submitted {
		fail(c, http.StatusConflict, "任务已提交或不处于待提交状态")
		return
	}
	success(c, task, "任务已提交")
}

// Stats 各状态任务数
func (h *PromptTaskHandler) Stats(c *gin.Context) {
	counts, err := h.tasks.CountByStatus(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, counts, "success")
}
