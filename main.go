// @title Chat Relation 后端 API
// @version 1.0
// @description 会话与社交关系引擎：私聊/群聊、好友申请、用户屏蔽与可见性过滤。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"chat_relation_backend/internal/app"
	"chat_relation_backend/internal/config"
	"chat_relation_backend/pkg/configwatcher"
	"chat_relation_backend/pkg/logger"
	"flag"
	"log"

	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	configDir := flag.String("config", "configs", "配置文件目录")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		application.Close()
		return
	}

	// 配置热更新
	watcher, err := configwatcher.New(*configDir + "/config.yaml")
	if err != nil {
		logger.Log.Warn("Config watcher disabled", zap.Error(err))
	} else {
		go watcher.Run(application.Context(), application.ApplyConfig)
	}

	application.Run()
}
