package websocket

import (
	"context"
	"net/http"

	"github.com/xemonbae01/Game-idea/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	// 客户端泵的生命周期上下文，关闭服务时取消
	baseCtx context.Context
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为空时允许所有来源。
func NewWebSocketHandler(ctx context.Context, h *hub.Hub, allowedOrigin string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}
	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      h,
		baseCtx:  ctx,
	}
}

// HandleConnection 处理 WebSocket 连接请求。
// 每个连接分配一个随机的连接 ID，连接建立后由 Hub 创建会话。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	connID := uuid.NewString()
	logCtx := logrus.WithField("conn_id", connID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 方法会自动发送 HTTP 错误响应，所以这里只需要记录日志
		logCtx.WithError(err).Warn("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	client := hub.NewClient(h.hub, conn, connID)
	if !h.hub.QueueMessage(hub.HubMessage{Type: "register", ConnID: connID, Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		conn.Close()
		return
	}

	go func() {
		if err := client.Run(h.baseCtx); err != nil {
			logCtx.WithError(err).Debug("WS Handler: client pumps stopped")
		}
	}()
}
