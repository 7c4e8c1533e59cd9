package hub

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var errSendClosed = errors.New("hub closed send channel")

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub  *Hub            // 指向其所属的 Hub
	conn *websocket.Conn // WebSocket 连接
	id   string          // 连接 ID，同时作为玩家主键
	send chan []byte     // 用于向此客户端发送消息的缓冲通道
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		id:   id,
		send: make(chan []byte, sendBufferSize),
	}
}

func (c *Client) ID() string { return c.id }

// Run 启动读写泵并阻塞直到两者都退出。任一方退出都会让另一方随之退出。
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.writePump(ctx) })
	g.Go(func() error { return c.readPump(ctx) })
	return g.Wait()
}

// enqueue 非阻塞地放入发送队列，队列满时丢弃，避免单个慢客户端阻塞 Hub。
func (c *Client) enqueue(message []byte) {
	select {
	case c.send <- message:
	default:
		logrus.WithField("conn_id", c.id).Warn("Client send channel full, message dropped")
	}
}

// readPump 将消息从 WebSocket 连接泵送到 Hub 的 messageChan。
func (c *Client) readPump(ctx context.Context) error {
	logCtx := logrus.WithField("conn_id", c.id)
	defer func() {
		// 请求 Hub 注销此客户端；Hub 已停止时直接放弃
		select {
		case c.hub.messageChan <- HubMessage{Type: "unregister", ConnID: c.id, Client: c}:
		case <-c.hub.done:
		}
		c.conn.Close()
		logCtx.Info("readPump exited, unregister requested")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// 只处理文本消息
		if messageType != websocket.TextMessage {
			logCtx.Debugf("Received non-text message type: %d", messageType)
			continue
		}
		logCtx.Debugf("Received raw message (size: %d)", len(message))

		// 阻塞入队以保持同一连接内的事件顺序
		select {
		case c.hub.messageChan <- HubMessage{Type: "event", ConnID: c.id, RawData: message}:
		case <-c.hub.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writePump 将消息从 Client 的 send 通道泵送到 WebSocket 连接。
func (c *Client) writePump(ctx context.Context) error {
	logCtx := logrus.WithField("conn_id", c.id)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logCtx.Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭了（通常在注销时）
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return errSendClosed
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logCtx.WithError(err).Warn("Failed to write message to websocket")
				return err
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logCtx.WithError(err).Warn("Failed to send ping message")
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
