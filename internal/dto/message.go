package dto

import (
	"encoding/json"

	"github.com/xemonbae01/Game-idea/internal/domain"
)

// 客户端 -> 服务端事件
const (
	EventSetUsername = "set-username"
	EventCreateRoom  = "create-room"
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventToggleReady = "toggle-ready"
	EventStartGame   = "start-game"
	EventGetRooms    = "get-rooms"
)

// 服务端 -> 客户端事件
const (
	EventConnected   = "connected"
	EventUsernameSet = "username-set"
	EventLobbyUpdate = "lobby-update"
	EventGameStart   = "game-start"
	EventAck         = "ack"
)

// InboundMessage 是客户端发来的 WebSocket 文本帧。
// Ack 非空时服务端必须且只会回复一次对应的 ack。
type InboundMessage struct {
	Event string          `json:"event"`
	Ack   *int            `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundMessage 是发给客户端的帧，广播与应答共用。
type OutboundMessage struct {
	Event string      `json:"event"`
	Ack   *int        `json:"ack,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// --- 请求负载 ---

type SetUsernameRequest struct {
	Name string `json:"name"`
}

// CreateRoomRequest 中 MaxPlayers 缺省时使用 domain.DefaultPlayers。
type CreateRoomRequest struct {
	Name       string `json:"name"`
	MaxPlayers *int   `json:"maxPlayers"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// --- 应答负载 ---

type OKAck struct {
	OK bool `json:"ok"`
}

type ErrorAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type RoomAck struct {
	OK   bool              `json:"ok"`
	Room domain.PublicView `json:"room"`
}

type ReadyAck struct {
	OK    bool `json:"ok"`
	Ready bool `json:"ready"`
}

type StartAck struct {
	OK      bool `json:"ok"`
	Started bool `json:"started"`
}

type RoomsAck struct {
	OK    bool                `json:"ok"`
	Rooms []domain.PublicView `json:"rooms"`
}

// --- 推送负载 ---

type ConnectedPayload struct {
	ID string `json:"id"`
}

type UsernamePayload struct {
	Name string `json:"name"`
}

// NewErrorAck 构造失败应答。
func NewErrorAck(code string) ErrorAck {
	return ErrorAck{OK: false, Error: code}
}
