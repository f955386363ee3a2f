package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"prompt-studio/app/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 包装 zap.Logger
type Logger struct {
	*zap.Logger
	sugar      *zap.SugaredLogger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// New 使用给定配置创建新的日志记录器实例
func New(cfg config.LogConfig) *Logger {
	level := parseLevel(cfg.Level)
	encoderConfig := newEncoderConfig()

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = consoleEncoder(encoderConfig)
	}

	if cfg.Output != "file" {
		return NewWithCore(zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	logDir := cfg.Dir
	if logDir == "" {
		logDir = "data/logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		panic("创建日志目录失败: " + err.Error())
	}

	// 按日期命名，lumberjack 负责按大小轮转
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, time.Now().Format("2006-01-02")+".log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(rotator), level)
	// 调试模式下同时输出到控制台
	if cfg.Level == "debug" {
		consoleCore := zapcore.NewCore(consoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), level)
		core = zapcore.NewTee(core, consoleCore)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := NewWithCore(core)
	l.cancelFunc = cancel

	l.wg.Add(1)
	go l.dailyRotateRoutine(ctx, rotator, logDir)

	return l
}

// NewWithCore 基于已有 core 创建，测试中配合 zaptest/observer 使用
func NewWithCore(core zapcore.Core) *Logger {
	z := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{
		Logger: z,
		sugar:  z.Sugar(),
	}
}

// NewNop 不输出任何内容的日志记录器
func NewNop() *Logger {
	return NewWithCore(zapcore.NewNopCore())
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func newEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func consoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// dailyRotateRoutine 每天零点切换到新的日志文件
func (l *Logger) dailyRotateRoutine(ctx context.Context, rotator *lumberjack.Logger, logDir string) {
	defer l.wg.Done()

	for {
		now := time.Now()
		nextDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

		select {
		case <-ctx.Done():
			return
		case <-time.After(nextDay.Sub(now) + time.Second):
			rotator.Filename = filepath.Join(logDir, nextDay.Format("2006-01-02")+".log")
			// 关闭当前文件，下次写入时打开新文件
			_ = rotator.Close()
		}
	}
}

// Close 关闭 logger 并等待后台任务完成
func (l *Logger) Close() error {
	if l.cancelFunc != nil {
		l.cancelFunc()
		l.wg.Wait()
	}
	return l.Logger.Sync()
}

// Sugar 返回 SugaredLogger 实例
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// Named 返回带组件名的子日志记录器
func (l *Logger) Named(name string) *Logger {
	z := l.Logger.Named(name)
	return &Logger{Logger: z, sugar: z.Sugar()}
}

// WithError 向日志记录器添加错误字段
func (l *Logger) WithError(err error) *zap.Logger {
	return l.Logger.With(zap.Error(err))
}

func (l *Logger) Debugf(template string, args ...interface{}) {
	l.sugar.Debugf(template, args...)
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.sugar.Infof(template, args...)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.sugar.Warnf(template, args...)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.sugar.Errorf(template, args...)
}

func (l *Logger) Fatalf(template string, args ...interface{}) {
	l.sugar.Fatalf(template, args...)
}

// Sync 刷新缓冲区
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
