package hub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/xemonbae01/Game-idea/internal/domain"
	"github.com/xemonbae01/Game-idea/internal/dto"
	"github.com/xemonbae01/Game-idea/internal/service"

	"github.com/sirupsen/logrus"
)

// 应答中使用的错误码
const (
	CodeRoomNotFound       = "ROOM_NOT_FOUND"
	CodeGameAlreadyStarted = "GAME_ALREADY_STARTED"
	CodeRoomFull           = "ROOM_FULL"
	CodeNotInRoom          = "NOT_IN_ROOM"
	CodePlayerNotInRoom    = "PLAYER_NOT_IN_ROOM"
	CodeNotHost            = "NOT_HOST"
	CodeNoPlayers          = "NO_PLAYERS"
	CodePlayersNotReady    = "PLAYERS_NOT_READY"
	CodeBadRequest         = "BAD_REQUEST"
	CodeInternalError      = "INTERNAL_ERROR"
)

// ErrorCode 将服务层错误映射为应答错误码。
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, service.ErrGameAlreadyStarted):
		return CodeGameAlreadyStarted
	case errors.Is(err, service.ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, service.ErrNotInRoom):
		return CodeNotInRoom
	case errors.Is(err, service.ErrPlayerNotInRoom):
		return CodePlayerNotInRoom
	case errors.Is(err, service.ErrNotHost):
		return CodeNotHost
	case errors.Is(err, service.ErrNoPlayers):
		return CodeNoPlayers
	case errors.Is(err, service.ErrPlayersNotReady):
		return CodePlayersNotReady
	default:
		return CodeInternalError
	}
}

// Transport 是路由器对传输层的全部依赖：按房间频道广播，以及向单个连接发送。
type Transport interface {
	Subscribe(connID, roomID string)
	Unsubscribe(connID, roomID string)
	Publish(roomID, event string, payload interface{})
	Send(connID, event string, payload interface{})
	Reply(connID string, ack int, payload interface{})
}

// EventRecorder 接收需要写入审计记录的房间事件，实现不得阻塞太久。
type EventRecorder interface {
	RecordSessionStarted(ctx context.Context, view domain.PublicView)
	RecordRoomClosed(ctx context.Context, view domain.PublicView)
}

type nopRecorder struct{}

func (nopRecorder) RecordSessionStarted(context.Context, domain.PublicView) {}
func (nopRecorder) RecordRoomClosed(context.Context, domain.PublicView)     {}

// Router 将连接事件解析为房间状态机操作，并把结果应答给发起者、广播给房间成员。
// 除 ConnectionSession 外不保存任何状态。所有方法必须在同一个 goroutine 中调用（Hub.Run）。
type Router struct {
	rooms     *service.RoomService
	transport Transport
	recorder  EventRecorder
	sessions  map[string]*domain.ConnectionSession
}

// NewRouter 创建 Router。recorder 为 nil 时不记录审计事件。
func NewRouter(rooms *service.RoomService, transport Transport, recorder EventRecorder) *Router {
	if rooms == nil {
		panic("RoomService cannot be nil for Router")
	}
	if transport == nil {
		panic("Transport cannot be nil for Router")
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Router{
		rooms:     rooms,
		transport: transport,
		recorder:  recorder,
		sessions:  make(map[string]*domain.ConnectionSession),
	}
}

// Session 返回连接的会话副本，主要供测试与调试使用。
func (r *Router) Session(connID string) (domain.ConnectionSession, bool) {
	s, ok := r.sessions[connID]
	if !ok {
		return domain.ConnectionSession{}, false
	}
	return *s, true
}

// Connect 为新连接建立会话并告知其连接 ID。
func (r *Router) Connect(ctx context.Context, connID string) {
	r.sessions[connID] = &domain.ConnectionSession{
		ConnectionID: connID,
		Name:         service.DefaultName(connID),
	}
	r.transport.Send(connID, dto.EventConnected, dto.ConnectedPayload{ID: connID})
	logrus.WithField("conn_id", connID).Debug("Router: session created")
}

// Disconnect 在传输层断线时清理成员关系，不产生应答。
func (r *Router) Disconnect(ctx context.Context, connID string) {
	sess, ok := r.sessions[connID]
	if !ok {
		return
	}
	delete(r.sessions, connID)
	if !sess.InRoom() {
		return
	}

	roomID := sess.RoomID
	r.transport.Unsubscribe(connID, roomID)
	res, ok := r.rooms.Disconnect(ctx, roomID, connID)
	if !ok {
		return
	}
	r.afterRemoval(ctx, roomID, res)
	logrus.WithFields(logrus.Fields{"conn_id": connID, "room_id": roomID}).Info("Router: disconnected player cleaned up")
}

// HandleEvent 解码一帧并分发到对应的处理函数。
func (r *Router) HandleEvent(ctx context.Context, connID string, raw []byte) {
	sess, ok := r.sessions[connID]
	if !ok {
		logrus.WithField("conn_id", connID).Warn("Router: event from unknown connection dropped")
		return
	}

	var msg dto.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logrus.WithField("conn_id", connID).WithError(err).Debug("Router: malformed frame")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"conn_id": connID, "event": msg.Event})
	logCtx.Debug("Router: handling event")

	reply := func(payload interface{}) {
		if msg.Ack != nil {
			r.transport.Reply(connID, *msg.Ack, payload)
		}
	}

	switch msg.Event {
	case dto.EventSetUsername:
		r.handleSetUsername(ctx, sess, msg.Data)
	case dto.EventCreateRoom:
		r.handleCreateRoom(ctx, sess, msg.Data, reply)
	case dto.EventJoinRoom:
		r.handleJoinRoom(ctx, sess, msg.Data, reply)
	case dto.EventLeaveRoom:
		r.handleLeaveRoom(ctx, sess, reply)
	case dto.EventToggleReady:
		r.handleToggleReady(ctx, sess, reply)
	case dto.EventStartGame:
		r.handleStartGame(ctx, sess, reply)
	case dto.EventGetRooms:
		r.handleGetRooms(ctx, reply)
	default:
		logCtx.Warn("Router: unknown event")
		reply(dto.NewErrorAck(CodeBadRequest))
	}
}

func (r *Router) handleSetUsername(ctx context.Context, sess *domain.ConnectionSession, data json.RawMessage) {
	name, ok := decodeName(data)
	if !ok {
		logrus.WithField("conn_id", sess.ConnectionID).Debug("Router: invalid set-username payload")
	}
	sess.Name = service.ResolveName(name, sess.ConnectionID)
	r.transport.Send(sess.ConnectionID, dto.EventUsernameSet, dto.UsernamePayload{Name: sess.Name})

	if !sess.InRoom() {
		return
	}
	view, err := r.rooms.RenamePlayer(ctx, sess.RoomID, sess.ConnectionID, sess.Name)
	if err != nil {
		logrus.WithFields(logrus.Fields{"conn_id": sess.ConnectionID, "room_id": sess.RoomID}).
			WithError(err).Warn("Router: rename in room failed")
		return
	}
	r.transport.Publish(view.ID, dto.EventLobbyUpdate, view)
}

func (r *Router) handleCreateRoom(ctx context.Context, sess *domain.ConnectionSession, data json.RawMessage, reply func(interface{})) {
	var req dto.CreateRoomRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			reply(dto.NewErrorAck(CodeBadRequest))
			return
		}
	}
	maxPlayers := domain.DefaultPlayers
	if req.MaxPlayers != nil {
		maxPlayers = *req.MaxPlayers
	}

	view, err := r.rooms.CreateRoom(ctx, sess.ConnectionID, r.pickName(sess, req.Name), maxPlayers)
	if err != nil {
		reply(dto.NewErrorAck(ErrorCode(err)))
		return
	}
	r.leaveCurrent(ctx, sess)
	r.enterRoom(sess, view)

	reply(dto.RoomAck{OK: true, Room: view})
	r.transport.Publish(view.ID, dto.EventLobbyUpdate, view)
}

func (r *Router) handleJoinRoom(ctx context.Context, sess *domain.ConnectionSession, data json.RawMessage, reply func(interface{})) {
	var req dto.JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		reply(dto.NewErrorAck(CodeBadRequest))
		return
	}
	roomID := strings.ToUpper(strings.TrimSpace(req.RoomID))

	view, err := r.rooms.JoinRoom(ctx, roomID, sess.ConnectionID, r.pickName(sess, req.Name))
	if err != nil {
		reply(dto.NewErrorAck(ErrorCode(err)))
		return
	}
	if sess.RoomID != roomID {
		r.leaveCurrent(ctx, sess)
	}
	r.enterRoom(sess, view)

	reply(dto.RoomAck{OK: true, Room: view})
	r.transport.Publish(view.ID, dto.EventLobbyUpdate, view)
}

func (r *Router) handleLeaveRoom(ctx context.Context, sess *domain.ConnectionSession, reply func(interface{})) {
	if !sess.InRoom() {
		reply(dto.NewErrorAck(CodeNotInRoom))
		return
	}
	roomID := sess.RoomID
	res, err := r.rooms.LeaveRoom(ctx, roomID, sess.ConnectionID)
	if err != nil {
		// 会话指向的房间已不存在或已不含该玩家，清理陈旧的关联
		r.transport.Unsubscribe(sess.ConnectionID, roomID)
		sess.RoomID = ""
		code := ErrorCode(err)
		if code == CodePlayerNotInRoom {
			code = CodeNotInRoom
		}
		reply(dto.NewErrorAck(code))
		return
	}
	r.transport.Unsubscribe(sess.ConnectionID, roomID)
	sess.RoomID = ""

	reply(dto.OKAck{OK: true})
	r.afterRemoval(ctx, roomID, res)
}

func (r *Router) handleToggleReady(ctx context.Context, sess *domain.ConnectionSession, reply func(interface{})) {
	if !sess.InRoom() {
		reply(dto.NewErrorAck(CodeNotInRoom))
		return
	}
	ready, view, err := r.rooms.ToggleReady(ctx, sess.RoomID, sess.ConnectionID)
	if err != nil {
		reply(dto.NewErrorAck(ErrorCode(err)))
		return
	}
	reply(dto.ReadyAck{OK: true, Ready: ready})
	r.transport.Publish(view.ID, dto.EventLobbyUpdate, view)
}

func (r *Router) handleStartGame(ctx context.Context, sess *domain.ConnectionSession, reply func(interface{})) {
	if !sess.InRoom() {
		reply(dto.NewErrorAck(CodeNotInRoom))
		return
	}
	payload, view, err := r.rooms.StartGame(ctx, sess.RoomID, sess.ConnectionID)
	if err != nil {
		reply(dto.NewErrorAck(ErrorCode(err)))
		return
	}
	// 先广播状态变更，再广播开局数据
	r.transport.Publish(view.ID, dto.EventLobbyUpdate, view)
	r.transport.Publish(view.ID, dto.EventGameStart, payload)
	reply(dto.StartAck{OK: true, Started: true})

	r.recorder.RecordSessionStarted(ctx, view)
}

func (r *Router) handleGetRooms(ctx context.Context, reply func(interface{})) {
	rooms, err := r.rooms.ListRooms(ctx)
	if err != nil {
		reply(dto.NewErrorAck(ErrorCode(err)))
		return
	}
	reply(dto.RoomsAck{OK: true, Rooms: rooms})
}

// --- 私有辅助函数 ---

// pickName 优先使用请求中的名字，其次是 set-username 设置的名字。
func (r *Router) pickName(sess *domain.ConnectionSession, requested string) string {
	if strings.TrimSpace(requested) != "" {
		return requested
	}
	return sess.Name
}

func (r *Router) enterRoom(sess *domain.ConnectionSession, view domain.PublicView) {
	sess.RoomID = view.ID
	for _, p := range view.Players {
		if p.ID == sess.ConnectionID {
			sess.Name = p.Name
			break
		}
	}
	r.transport.Subscribe(sess.ConnectionID, view.ID)
}

// leaveCurrent 在进入新房间前隐式离开当前房间，保证一个连接最多属于一个房间。
func (r *Router) leaveCurrent(ctx context.Context, sess *domain.ConnectionSession) {
	if !sess.InRoom() {
		return
	}
	roomID := sess.RoomID
	r.transport.Unsubscribe(sess.ConnectionID, roomID)
	sess.RoomID = ""
	res, err := r.rooms.LeaveRoom(ctx, roomID, sess.ConnectionID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"conn_id": sess.ConnectionID, "room_id": roomID}).
			WithError(err).Debug("Router: implicit leave found nothing to remove")
		return
	}
	r.afterRemoval(ctx, roomID, res)
}

// afterRemoval 房间仍存在时广播新视图，房间被销毁时只记录审计事件。
func (r *Router) afterRemoval(ctx context.Context, roomID string, res service.LeaveResult) {
	if res.Closed {
		r.recorder.RecordRoomClosed(ctx, res.Room)
		return
	}
	r.transport.Publish(roomID, dto.EventLobbyUpdate, res.Room)
}

// decodeName 接受 "name" 或 {"name": "..."} 两种形式。
func decodeName(data json.RawMessage) (string, bool) {
	if len(data) == 0 {
		return "", true
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, true
	}
	var req dto.SetUsernameRequest
	if err := json.Unmarshal(data, &req); err == nil {
		return req.Name, true
	}
	return "", false
}
