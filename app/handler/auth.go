package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"prompt-studio/app/auth"
	"prompt-studio/app/logger"
	"prompt-studio/app/model"
	"prompt-studio/app/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	db         *gorm.DB
	jwtService *auth.JWTService
	log        *logger.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(db *gorm.DB, jwtService *auth.JWTService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{db: db, jwtService: jwtService, log: log}
}

// LoginRequest 登录请求结构
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应结构
type LoginResponse struct {
	Token    string      `json:"token"`
	User     *model.User `json:"user"`
	ExpireAt int64       `json:"expire_at"`
}

// RegisterRequest 注册请求结构
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=20"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"required,email"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	var user model.User
	if err := h.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		fail(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}
	if !utils.VerifyPassword(req.Password, user.Password) {
		fail(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}
	if !user.CanLogin() {
		fail(c, http.StatusForbidden, "用户账号已被禁用")
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		h.log.Errorf("生成令牌失败: %v", err)
		fail(c, http.StatusInternalServerError, "生成令牌失败")
		return
	}

	now := time.Now()
	user.LastLogin = &now
	if err := h.db.Model(&user).Update("last_login", now).Error; err != nil {
		h.log.Warnf("更新最后登录时间失败: UserID=%d, 错误: %v", user.ID, err)
	}

	success(c, LoginResponse{
		Token:    token,
		User:     &user,
		ExpireAt: now.Add(h.jwtService.TTL()).Unix(),
	}, "登录成功")
}

// Register 用户注册
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}

	var count int64
	h.db.Model(&model.User{}).Where("username = ?", req.Username).Count(&count)
	if count > 0 {
		fail(c, http.StatusConflict, "用户名已存在")
		return
	}
	h.db.Model(&model.User{}).Where("email = ?", req.Email).Count(&count)
	if count > 0 {
		fail(c, http.StatusConflict, "邮箱已存在")
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		fail(c, http.StatusInternalServerError, "密码哈希失败")
		return
	}

	user := model.User{
		Username: req.Username,
		Password: hashedPassword,
		Email:    req.Email,
		IsActive: true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		h.log.Errorf("创建用户失败: %v", err)
		fail(c, http.StatusInternalServerError, "创建用户失败")
		return
	}

	created(c, user, "注册成功")
}

// RefreshToken 刷新令牌
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !found || token == "" {
		fail(c, http.StatusUnauthorized, "Authorization header is required")
		return
	}

	newToken, err := h.jwtService.RefreshToken(token)
	if errors.Is(err, auth.ErrTokenNotExpiry) {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusUnauthorized, "刷新令牌失败: "+err.Error())
		return
	}

	success(c, gin.H{
		"token":     newToken,
		"expire_at": time.Now().Add(h.jwtService.TTL()).Unix(),
	}, "刷新成功")
}

// Me 获取当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	var user model.User
	if err := h.db.First(&user, currentUserID(c)).Error; err != nil {
		fail(c, http.StatusNotFound, "用户不存在")
		return
	}
	success(c, user, "success")
}
