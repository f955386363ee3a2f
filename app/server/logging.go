package server

import (
	"time"

	"prompt-studio/app/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestLogger 用 zap 记录请求，替代 gin 默认的文本日志
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= 500:
			log.Error("请求失败", fields...)
		case c.Writer.Status() >= 400:
			log.Warn("请求被拒绝", fields...)
		default:
			log.Debug("请求完成", fields...)
		}
	}
}
