package http

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/meetflow/backend/internal/infrastructure/config"
	"github.com/meetflow/backend/internal/infrastructure/log"
	"github.com/meetflow/backend/internal/interfaces/http/handler"
	"github.com/meetflow/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	serverCfg *config.ServerConfig,
	meetingHandler *handler.MeetingHandler,
	contextHandler *handler.ContextHandler,
	feedHandler *handler.FeedHandler,
	wsHandler *handler.WebSocketHandler,
) *HTTPServer {
	router := gin.Default()
	router.Use(middleware.EnsureUTF8Body())

	logger := log.NewModuleLogger("http", "server")

	// 注册路由
	api := router.Group("/api/v1")
	{
		// 会议运行时
		api.GET("/meetings", meetingHandler.Meetings)
		api.DELETE("/meetings/:meetingId", meetingHandler.RemoveMeeting)

		// 话语摄入与补录
		api.POST("/meetings/:meetingId/utterances", meetingHandler.IngestUtterance)
		api.POST("/meetings/:meetingId/resync", meetingHandler.Resync)

		// 上下文装配
		api.GET("/meetings/:meetingId/context", contextHandler.BuildContext)
		api.GET("/meetings/:meetingId/context/planning", contextHandler.PlanningContext)
		api.GET("/meetings/:meetingId/topics", contextHandler.RequiredTopics)

		// 发言人
		api.GET("/meetings/:meetingId/speakers", meetingHandler.Speakers)

		// 话题流
		api.GET("/meetings/:meetingId/feed", feedHandler.Feed)
		api.GET("/meetings/:meetingId/feed/stream", feedHandler.Stream)
	}

	// WebSocket 话题流推送
	router.GET("/ws/meetings/:meetingId", wsHandler.Subscribe)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &HTTPServer{
		router:   router,
		httpPort: serverCfg.HTTPPort,
		logger:   logger,
	}
}

// Start 启动服务器
func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:    s.httpPort,
		Handler: s.router,
	}

	s.logger.Info("HTTP server starting",
		"port", s.httpPort,
	)

	return s.server.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
