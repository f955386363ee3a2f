package handler

import (
	"encoding/json"
	"net/http"

	"prompt-studio/app/service"

	"github.com/gin-gonic/gin"
)

// GenerationSettingsHandler 生成参数配置接口，修改需要管理员权限
type GenerationSettingsHandler struct {
	settings *service.GenerationSettingsService
}

func NewGenerationSettingsHandler(settings *service.GenerationSettingsService) *GenerationSettingsHandler {
	return &GenerationSettingsHandler{settings: settings}
}

// Current 当前生效的允许列表与取值范围
func (h *GenerationSettingsHandler) Current(c *gin.Context) {
	g, err := h.settings.Current(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, g, "success")
}

// Keys 可覆盖的配置键
func (h *GenerationSettingsHandler) Keys(c *gin.Context) {
	success(c, service.SettingKeys(), "success")
}

// Overrides 数据库中的覆盖项
func (h *GenerationSettingsHandler) Overrides(c *gin.Context) {
	rows, err := h.settings.Overrides(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, rows, "success")
}

// SetOverride 请求体即覆盖值：列表键为字符串数组，区间键为 {"min":..,"max":..}
func (h *GenerationSettingsHandler) SetOverride(c *gin.Context) {
	var value json.RawMessage
	if err := c.ShouldBindJSON(&value); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	key := c.Param("key")
	if err := h.settings.SetOverride(c.Request.Context(), key, value); err != nil {
		writeError(c, err)
		return
	}
	h.Current(c)
}

func (h *GenerationSettingsHandler) ClearOverride(c *gin.Context) {
	if err := h.settings.ClearOverride(c.Request.Context(), c.Param("key")); err != nil {
		writeError(c, err)
		return
	}
	success(c, nil, "覆盖项已删除")
}
