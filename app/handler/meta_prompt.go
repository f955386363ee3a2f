package handler

import (
	"errors"
	"net/http"
	"strings"

	"prompt-studio/app/model"
	"prompt-studio/app/validation"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MetaPromptHandler 提示词模板接口
type MetaPromptHandler struct {
	db *gorm.DB
}

func NewMetaPromptHandler(db *gorm.DB) *MetaPromptHandler {
	return &MetaPromptHandler{db: db}
}

type metaPromptRequest struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

func (r metaPromptRequest) validate() error {
	var errs validation.Errors
	if strings.TrimSpace(r.Name) == "" {
		errs.Add("name", "can't be blank")
	}
	return errs.Err()
}

func (h *MetaPromptHandler) Create(c *gin.Context) {
	var req metaPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(c, err)
		return
	}
	mp := &model.MetaPrompt{UserID: currentUserID(c), Name: req.Name, Body: req.Body}
	if err := h.db.WithContext(c.Request.Context()).Create(mp).Error; err != nil {
		writeError(c, err)
		return
	}
	created(c, mp, "模板已创建")
}

func (h *MetaPromptHandler) List(c *gin.Context) {
	var list []model.MetaPrompt
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", currentUserID(c)).
		Order("id DESC").
		Find(&list).Error; err != nil {
		writeError(c, err)
		return
	}
	success(c, list, "success")
}

func (h *MetaPromptHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req metaPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(c, err)
		return
	}

	var mp model.MetaPrompt
	err := h.db.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", id, currentUserID(c)).First(&mp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, "模板不存在")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&mp).
		Updates(map[string]any{"name": req.Name, "body": req.Body}).Error; err != nil {
		writeError(c, err)
		return
	}
	success(c, mp, "模板已更新")
}

// Delete 删除模板，仍被任务引用时拒绝
func (h *MetaPromptHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var inUse int64
	if err := h.db.WithContext(ctx).Model(&model.PromptTask{}).Where("meta_prompt_id = ?", id).Count(&inUse).Error; err != nil {
		writeError(c, err)
		return
	}
	if inUse > 0 {
		fail(c, http.StatusConflict, "模板仍被任务引用")
		return
	}

	res := h.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, currentUserID(c)).Delete(&model.MetaPrompt{})
	if res.Error != nil {
		writeError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		fail(c, http.StatusNotFound, "模板不存在")
		return
	}
	success(c, nil, "模板已删除")
}
