package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"prompt-studio/app/config"
	"prompt-studio/app/database"
	"prompt-studio/app/jobqueue"
	"prompt-studio/app/logger"
	"prompt-studio/app/service"

	"github.com/spf13/cobra"
)

var reaperOnce bool

// reaperCmd 独立运行卡住任务回收，适用于 server 关闭了 reaper.embedded 的部署
var reaperCmd = &cobra.Command{
	Use:   "reaper",
	Short: "重新投递长时间停留在 submitting 的任务",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		log := logger.New(cfg.Log)
		defer log.Close()

		db, err := database.Open(cfg.Database.Path)
		if err != nil {
			log.Fatalf("连接数据库失败: %v", err)
		}
		database.DB = db
		defer database.Close()

		queue, err := jobqueue.New(cfg.Queue, db, log.Named("queue"))
		if err != nil {
			log.Fatalf("创建任务队列失败: %v", err)
		}
		defer queue.Close()

		settings := service.NewGenerationSettingsService(db, log, nil)
		tasks := service.NewPromptTaskService(db, settings, log)
		reaper := service.NewReaperService(tasks, queue, cfg.Reaper, log.Named("reaper"))

		if reaperOnce {
			n, err := reaper.RunOnce(context.Background())
			if err != nil {
				log.Errorf("回收失败: %v", err)
				return
			}
			log.Infof("回收完成，重新投递 %d 个任务", n)
			return
		}

		if err := reaper.Start(); err != nil {
			log.Errorf("启动回收服务失败: %v", err)
			return
		}
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		reaper.Stop()
	},
}

func init() {
	reaperCmd.Flags().BoolVar(&reaperOnce, "once", false, "只执行一次后退出")
	rootCmd.AddCommand(reaperCmd)
}
