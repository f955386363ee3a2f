package handler

import (
	"errors"
	"net/http"

	"prompt-studio/app/jobqueue"
	"prompt-studio/app/logger"
	"prompt-studio/app/model"
	"prompt-studio/app/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// WorkerHandler 生成节点使用的接口，使用共享令牌认证
type WorkerHandler struct {
	db    *gorm.DB
	tasks *service.PromptTaskService
	queue jobqueue.JobQueue
	log   *logger.Logger
}

func NewWorkerHandler(db *gorm.DB, tasks *service.PromptTaskService, queue jobqueue.JobQueue, log *logger.Logger) *WorkerHandler {
	return &WorkerHandler{db: db, tasks: tasks, queue: queue, log: log}
}

// GetTask 生成节点按队列消息中的ID获取任务参数
func (h *WorkerHandler) GetTask(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var task model.PromptTask
	err := h.db.WithContext(c.Request.Context()).Preload("MetaPrompt").First(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(c, service.ErrTaskNotFound)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, task, "success")
}

// UpdateStatus 回写任务状态与结果
func (h *WorkerHandler) UpdateStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.WorkerUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	task, err := h.tasks.ApplyWorkerUpdate(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, task, "状态已更新")
}

// ClaimJob 领取数据库队列中的下一条任务，没有任务时返回 204
func (h *WorkerHandler) ClaimJob(c *gin.Context) {
	dbQueue, ok := h.queue.(*jobqueue.DatabaseQueue)
	if !ok {
		fail(c, http.StatusNotFound, "当前队列驱动不支持领取")
		return
	}
	job, err := dbQueue.Claim(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if job == nil {
		c.Status(http.StatusNoContent)
		return
	}
	success(c, job, "success")
}

// QueueStats 数据库队列各状态数量
func (h *WorkerHandler) QueueStats(c *gin.Context) {
	dbQueue, ok := h.queue.(*jobqueue.DatabaseQueue)
	if !ok {
		fail(c, http.StatusNotFound, "当前队列驱动不支持统计")
		return
	}
	stats, err := dbQueue.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, stats, "success")
}
