package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/carva/internal/service"
	"github.com/langchou/carva/pkg/ws"
)

// Reconciler OAuth 回调处理
type Reconciler interface {
	Reconcile(ctx context.Context, p service.CallbackParams) *service.ReconcileResult
}

// AuthURLer 生成授权链接
type AuthURLer interface {
	AuthURL(state string) string
}

// Handler HTTP 处理器
type Handler struct {
	logger      *zap.Logger
	reconciler  Reconciler
	auth        AuthURLer
	wsHub       *ws.Hub
	botRunning  func() bool
	environment string
	upgrader    websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	reconciler Reconciler,
	auth AuthURLer,
	wsHub *ws.Hub,
	botRunning func() bool,
	environment string,
) *Handler {
	return &Handler{
		logger:      logger.Named("http"),
		reconciler:  reconciler,
		auth:        auth,
		wsHub:       wsHub,
		botRunning:  botRunning,
		environment: environment,
		upgrader: websocket.Upgrader{
			// 订阅依赖令牌而非 cookie，允许任意来源
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(callbackTemplate)

	r.GET("/", h.Root)
	r.GET("/health", h.HealthCheck)

	// Smartcar OAuth
	r.GET("/callback", h.Callback)
	r.GET("/auth/smartcar", h.AuthURL)

	// WebSocket
	if h.wsHub != nil {
		r.GET("/ws", h.HandleWebSocket)
	}
}

// Root 服务信息
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Smart Car Virtual Assistant",
		"version":     "1.0.0",
		"status":      "running",
		"description": "Telegram bot for managing connected vehicles",
		"endpoints": gin.H{
			"health":   "/health",
			"callback": "/callback",
		},
	})
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	clients := 0
	if h.wsHub != nil {
		clients = h.wsHub.ClientCount()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"bot_running": h.botRunning != nil && h.botRunning(),
		"environment": h.environment,
		"ws_clients":  clients,
	})
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	if !client.Register() {
		conn.Close()
		return
	}

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}
