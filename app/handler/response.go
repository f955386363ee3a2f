package handler

import (
	"errors"
	"net/http"
	"strconv"

	"prompt-studio/app/middleware"
	"prompt-studio/app/service"
	"prompt-studio/app/validation"

	"github.com/gin-gonic/gin"
)

// ApiResponse 统一的API响应格式
type ApiResponse struct {
	Code    int    `json:"code"`    // 状态码，0表示成功
	Message string `json:"message"` // 响应消息
	Data    any    `json:"data"`    // 响应数据
}

// PageData 分页数据
type PageData struct {
	Items    any   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{Code: 0, Message: message, Data: data})
}

func created(c *gin.Context, data any, message string) {
	c.JSON(http.StatusCreated, ApiResponse{Code: 0, Message: message, Data: data})
}

func fail(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ApiResponse{Code: statusCode, Message: message, Data: nil})
}

// writeError 按错误类型映射状态码
func writeError(c *gin.Context, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, ApiResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: verrs.Error(),
			Data:    verrs,
		})
	case errors.Is(err, service.ErrTaskNotFound), errors.Is(err, service.ErrGlossaryNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrTaskNotEditable), errors.Is(err, service.ErrTaskNotDeletable):
		fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrReservedStatus), errors.Is(err, service.ErrUnknownSettingKey),
		errors.Is(err, service.ErrInvalidSettingValue):
		fail(c, http.StatusUnprocessableEntity, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "服务器内部错误")
	}
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint(middleware.ContextUserID)
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "无效的ID")
		return 0, false
	}
	return uint(id), true
}
