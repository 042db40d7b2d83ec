package wire

import (
	"database/sql"

	"log/slog"

	"github.com/meetflow/backend/internal/application/contextengine"
	"github.com/meetflow/backend/internal/domain/events"
	"github.com/meetflow/backend/internal/infrastructure/config"
	applog "github.com/meetflow/backend/internal/infrastructure/log"
	"github.com/meetflow/backend/internal/infrastructure/websocket"
	"github.com/meetflow/backend/internal/interfaces"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer *interfaces.HTTPServer
	wsHub      *websocket.Hub
	registry   *contextengine.RuntimeRegistry
	feed       *contextengine.FeedService
	eventBus   events.EventBus
	db         *sql.DB
	logger     *slog.Logger

	// 配置文件热加载
	configWatcher *config.Watcher
}

// NewApp 创建应用实例
func NewApp(
	httpServer *interfaces.HTTPServer,
	wsHub *websocket.Hub,
	registry *contextengine.RuntimeRegistry,
	feed *contextengine.FeedService,
	eventBus events.EventBus,
	db *sql.DB,
) *App {
	logger := applog.NewModuleLogger("app", "main")

	app := &App{
		HTTPServer: httpServer,
		wsHub:      wsHub,
		registry:   registry,
		feed:       feed,
		eventBus:   eventBus,
		db:         db,
		logger:     logger,
	}

	// 配置监听器：目前仅话题关键词支持热更新
	watcher, err := config.NewWatcher(config.ConfigFilePath(), func(cfg *config.Config) {
		registry.ApplyTopicKeywords(cfg.Engine.TopicKeywords)
	}, applog.NewModuleLogger("app", "config_watcher"))
	if err != nil {
		logger.Error("Failed to create config watcher", "error", err)
	} else {
		app.configWatcher = watcher
	}

	return app
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("Starting MeetFlow backend application")

	// 启动会议运行时注册表（TTL 清理协程）
	a.registry.Start()

	// 启动 WebSocket Hub
	a.wsHub.Start()

	// 启动配置监听
	if a.configWatcher != nil {
		if err := a.configWatcher.Start(); err != nil {
			a.logger.Error("Failed to start config watcher",
				"error", err,
			)
		}
	}

	// 启动 HTTP 服务器（goroutine）
	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	a.logger.Info("MeetFlow backend application started successfully")
	return nil
}

// Stop 停止所有服务
func (a *App) Stop() error {
	a.logger.Info("Stopping MeetFlow backend application")

	// 停止配置监听
	if a.configWatcher != nil {
		a.configWatcher.Stop()
	}

	// 停止注册表清理协程
	a.registry.Stop()

	// 取消话题流事件订阅
	if a.feed != nil {
		a.feed.Close()
	}

	// 关闭事件总线，等待在途事件处理完成
	if a.eventBus != nil {
		a.eventBus.Close()
		a.logger.Info("Event bus closed")
	}

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server",
			"error", err,
		)
		return err
	}

	// 关闭数据库连接
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database connection",
				"error", err,
			)
			return err
		}
	}

	a.logger.Info("MeetFlow backend application stopped")
	return nil
}
