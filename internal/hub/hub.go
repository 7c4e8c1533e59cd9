package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/xemonbae01/Game-idea/internal/dto"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 包内使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// 每个客户端发送队列的容量
	sendBufferSize = 256
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string  // "register", "unregister", "event"
	ConnID  string  // 来源连接 ID
	Client  *Client // 仅用于 register/unregister
	RawData []byte  // 仅用于 event (原始 WebSocket 消息)
}

// EventHandler 处理连接生命周期与入站事件，由 Hub.Run 串行调用。
type EventHandler interface {
	Connect(ctx context.Context, connID string)
	Disconnect(ctx context.Context, connID string)
	HandleEvent(ctx context.Context, connID string, raw []byte)
}

// Hub 维护活跃客户端与房间频道，并在单个 goroutine 中按到达顺序处理所有事件。
// 它同时实现了 Router 所需的 Transport。
type Hub struct {
	// 内部通道，处理所有来自 Client 的事件
	messageChan chan HubMessage

	// map[connID]*Client
	clients map[string]*Client
	// 房间频道：map[roomID]map[connID]struct{}
	channels map[string]map[string]struct{}
	// 保护 clients 与 channels 的读写锁
	mu sync.RWMutex

	done chan struct{}
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub() *Hub {
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		clients:     make(map[string]*Client),
		channels:    make(map[string]map[string]struct{}),
		done:        make(chan struct{}),
	}
}

// Run 启动 Hub 的主事件处理循环，直到 ctx 被取消。
// 每个事件都在本 goroutine 内处理完毕后才处理下一个。
func (h *Hub) Run(ctx context.Context, handler EventHandler) {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info("Hub is shutting down...")
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerClient(ctx, handler, msg.Client)
			case "unregister":
				h.unregisterClient(ctx, handler, msg.Client)
			case "event":
				handler.HandleEvent(ctx, msg.ConnID, msg.RawData)
			default:
				log.Warnf("Hub: Received unknown message type: %s from connection %s", msg.Type, msg.ConnID)
			}
		}
	}
}

// Done 在 Run 退出后关闭。
func (h *Hub) Done() <-chan struct{} { return h.done }

// registerClient 处理客户端注册逻辑
func (h *Hub) registerClient(ctx context.Context, handler EventHandler, client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	h.mu.Lock()
	h.clients[client.ID()] = client
	h.mu.Unlock()
	logrus.WithField("conn_id", client.ID()).Info("Client registered to Hub")

	handler.Connect(ctx, client.ID())
}

// unregisterClient 先让路由器完成断线清理（此时仍可向其他成员广播），再移除客户端
func (h *Hub) unregisterClient(ctx context.Context, handler EventHandler, client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	connID := client.ID()
	logCtx := logrus.WithField("conn_id", connID)

	h.mu.RLock()
	current, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok || current != client {
		logCtx.Warn("Client not found during unregister")
		return
	}

	handler.Disconnect(ctx, connID)

	h.mu.Lock()
	delete(h.clients, connID)
	for roomID, members := range h.channels {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.channels, roomID)
		}
	}
	h.mu.Unlock()

	// 关闭 send 通道，WritePump 随之退出
	close(client.send)
	logCtx.Info("Client unregistered from Hub")
}

// closeAll 在关闭时关闭所有客户端连接
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID, client := range h.clients {
		close(client.send)
		delete(h.clients, connID)
	}
	h.channels = make(map[string]map[string]struct{})
}

// --- Transport 实现 ---

func (h *Hub) Subscribe(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[roomID]
	if !ok {
		members = make(map[string]struct{})
		h.channels[roomID] = members
	}
	members[connID] = struct{}{}
}

func (h *Hub) Unsubscribe(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.channels[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.channels, roomID)
		}
	}
}

// Publish 将事件发送给房间频道中的所有连接
func (h *Hub) Publish(roomID, event string, payload interface{}) {
	message, err := json.Marshal(dto.OutboundMessage{Event: event, Data: payload})
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "event": event}).WithError(err).Error("Failed to marshal broadcast")
		return
	}

	h.mu.RLock()
	members := h.channels[roomID]
	// 创建一个接收者列表的副本，以避免长时间持有锁
	recipients := make([]*Client, 0, len(members))
	for connID := range members {
		if client, ok := h.clients[connID]; ok {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	logrus.WithFields(logrus.Fields{
		"room_id":         roomID,
		"event":           event,
		"recipient_count": len(recipients),
	}).Debug("Broadcasting message to room")

	for _, client := range recipients {
		client.enqueue(message)
	}
}

// Send 将事件发送给单个连接
func (h *Hub) Send(connID, event string, payload interface{}) {
	h.sendMessage(connID, dto.OutboundMessage{Event: event, Data: payload})
}

// Reply 向发起请求的连接发送 ack
func (h *Hub) Reply(connID string, ack int, payload interface{}) {
	h.sendMessage(connID, dto.OutboundMessage{Event: dto.EventAck, Ack: &ack, Data: payload})
}

func (h *Hub) sendMessage(connID string, msg dto.OutboundMessage) {
	message, err := json.Marshal(msg)
	if err != nil {
		logrus.WithFields(logrus.Fields{"conn_id": connID, "event": msg.Event}).WithError(err).Error("Failed to marshal message")
		return
	}
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	client.enqueue(message)
}

// --- 公共方法 ---

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 如果消息成功入队，false 如果队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"conn_id":      msg.ConnID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}
