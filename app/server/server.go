package server

import (
	"context"
	"net/http"

	"prompt-studio/app/auth"
	"prompt-studio/app/config"
	"prompt-studio/app/database"
	"prompt-studio/app/handler"
	"prompt-studio/app/jobqueue"
	"prompt-studio/app/logger"
	"prompt-studio/app/middleware"
	"prompt-studio/app/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Server 表示 HTTP 服务器
type Server struct {
	Config   *config.Config
	Logger   *logger.Logger
	gin      *gin.Engine
	http     *http.Server
	db       *gorm.DB
	queue    jobqueue.JobQueue
	settings *service.GenerationSettingsService
	tasks    *service.PromptTaskService
	reaper   *service.ReaperService
}

// New 创建 Server，队列按配置的驱动建立连接
func New(cfg *config.Config, db *gorm.DB, log *logger.Logger) (*Server, error) {
	queue, err := jobqueue.New(cfg.Queue, db, log.Named("queue"))
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	settings := service.NewGenerationSettingsService(db, log.Named("settings"), nil)
	tasks := service.NewPromptTaskService(db, settings, log.Named("tasks"))

	s := &Server{
		Config: cfg,
		Logger: log,
		gin:    router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		db:       db,
		queue:    queue,
		settings: settings,
		tasks:    tasks,
	}
	if cfg.Reaper.Embedded {
		s.reaper = service.NewReaperService(tasks, queue, cfg.Reaper, log.Named("reaper"))
	}

	s.setupRoutes()
	return s, nil
}

// Handler 返回路由，测试中直接使用
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Start 启动服务器
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器, 队列驱动: %s", s.http.Addr, s.Config.Queue.Driver)

	// 配置文件中的允许列表变化后立即生效
	config.WatchGeneration(func(g config.GenerationConfig, err error) {
		if err != nil {
			s.Logger.Errorf("生成参数配置无效，继续使用旧配置: %v", err)
			return
		}
		s.settings.Invalidate()
		s.Logger.Infof("生成参数配置已重新加载: %d 个模型, %d 个采样器", len(g.SDModelNames), len(g.SamplerNames))
	})

	if s.reaper != nil {
		if err := s.reaper.Start(); err != nil {
			return err
		}
	}

	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.reaper != nil {
		s.reaper.Stop()
	}

	err := s.http.Shutdown(ctx)

	if cerr := s.queue.Close(); cerr != nil {
		s.Logger.Errorf("关闭任务队列失败: %v", cerr)
	}
	if cerr := database.Close(); cerr != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", cerr)
	}
	return err
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	jwtService := auth.NewJWTService(s.Config.JWT)
	submitter := service.NewSubmissionService(s.db, s.queue, s.Logger.Named("submission"))

	authHandler := handler.NewAuthHandler(s.db, jwtService, s.Logger)
	taskHandler := handler.NewPromptTaskHandler(s.tasks, submitter, s.Logger)
	workerHandler := handler.NewWorkerHandler(s.db, s.tasks, s.queue, s.Logger)
	glossaryHandler := handler.NewGlossaryHandler(service.NewGlossaryService(s.db, s.Logger))
	metaPromptHandler := handler.NewMetaPromptHandler(s.db)
	settingsHandler := handler.NewGenerationSettingsHandler(s.settings)

	s.gin.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API路由组
	api := s.gin.Group("/api")

	// 认证相关路由（不需要JWT验证）
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/refresh", authHandler.RefreshToken)
	}

	// 需要JWT验证的路由
	protected := api.Group("/")
	protected.Use(middleware.JWTAuth(jwtService))
	{
		protected.GET("/me", authHandler.Me)

		tasks := protected.Group("/tasks")
		{
			tasks.POST("", taskHandler.Create)
			tasks.GET("", taskHandler.List)
			tasks.GET("/stats", taskHandler.Stats)
			tasks.GET("/:id", taskHandler.Get)
			tasks.PUT("/:id", taskHandler.Update)
			tasks.DELETE("/:id", taskHandler.Delete)
			tasks.POST("/:id/submit", taskHandler.Submit)
		}

		glossaries := protected.Group("/glossaries")
		{
			glossaries.POST("", glossaryHandler.Create)
			glossaries.GET("", glossaryHandler.List)
			glossaries.GET("/:id", glossaryHandler.Get)
			glossaries.PUT("/:id", glossaryHandler.Rename)
			glossaries.DELETE("/:id", glossaryHandler.Delete)
			glossaries.POST("/:id/vocabularies", glossaryHandler.AddVocabulary)
			glossaries.PUT("/:id/prompting-plan", glossaryHandler.SetPromptingPlan)
		}

		metaPrompts := protected.Group("/meta-prompts")
		{
			metaPrompts.POST("", metaPromptHandler.Create)
			metaPrompts.GET("", metaPromptHandler.List)
			metaPrompts.PUT("/:id", metaPromptHandler.Update)
			metaPrompts.DELETE("/:id", metaPromptHandler.Delete)
		}

		settings := protected.Group("/settings/generation")
		{
			settings.GET("", settingsHandler.Current)
			settings.GET("/keys", settingsHandler.Keys)
			settings.GET("/overrides", middleware.AdminOnly(), settingsHandler.Overrides)
			settings.PUT("/:key", middleware.AdminOnly(), settingsHandler.SetOverride)
			settings.DELETE("/:key", middleware.AdminOnly(), settingsHandler.ClearOverride)
		}
	}

	// 生成节点回调
	worker := s.gin.Group("/worker")
	worker.Use(middleware.WorkerToken(s.Config.Server.WorkerToken))
	{
		worker.GET("/tasks/:id", workerHandler.GetTask)
		worker.POST("/tasks/:id/status", workerHandler.UpdateStatus)
		worker.POST("/jobs/claim", workerHandler.ClaimJob)
		worker.GET("/jobs/stats", workerHandler.QueueStats)
	}
}
