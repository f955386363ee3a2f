package handler

import (
	"net/http"

	"prompt-studio/app/model"
	"prompt-studio/app/service"

	"github.com/gin-gonic/gin"
)

// GlossaryHandler 词汇表接口
type GlossaryHandler struct {
	glossaries *service.GlossaryService
}

func NewGlossaryHandler(glossaries *service.GlossaryService) *GlossaryHandler {
	return &GlossaryHandler{glossaries: glossaries}
}

type glossaryRequest struct {
	Name string `json:"name"`
}

type vocabularyRequest struct {
	Term   string   `json:"term"`
	Weight *float64 `json:"weight"`
}

type promptingPlanRequest struct {
	Template string `json:"template"`
}

func (h *GlossaryHandler) Create(c *gin.Context) {
	var req glossaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	userID := currentUserID(c)
	g := &model.Glossary{UserID: &userID, Name: req.Name}
	if err := h.glossaries.Create(c.Request.Context(), g); err != nil {
		writeError(c, err)
		return
	}
	created(c, g, "词汇表已创建")
}

func (h *GlossaryHandler) List(c *gin.Context) {
	list, err := h.glossaries.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, list, "success")
}

func (h *GlossaryHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	g, err := h.glossaries.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, g, "success")
}

func (h *GlossaryHandler) Rename(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req glossaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	g, err := h.glossaries.Rename(c.Request.Context(), currentUserID(c), id, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, g, "词汇表已更新")
}

func (h *GlossaryHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.glossaries.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
		writeError(c, err)
		return
	}
	success(c, nil, "词汇表已删除")
}

// AddVocabulary 添加词条，权重默认为 1
func (h *GlossaryHandler) AddVocabulary(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req vocabularyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	v := &model.Vocabulary{Term: req.Term, Weight: 1}
	if req.Weight != nil {
		v.Weight = *req.Weight
	}
	if err := h.glossaries.AddVocabulary(c.Request.Context(), currentUserID(c), id, v); err != nil {
		writeError(c, err)
		return
	}
	created(c, v, "词条已添加")
}

func (h *GlossaryHandler) SetPromptingPlan(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req promptingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	plan, err := h.glossaries.SetPromptingPlan(c.Request.Context(), currentUserID(c), id, req.Template)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, plan, "组词方案已保存")
}
