package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xemonbae01/Game-idea/internal/domain"
	"github.com/xemonbae01/Game-idea/internal/repository"

	"github.com/sirupsen/logrus"
)

// RoomOptions 是房间状态机的可配置项。
type RoomOptions struct {
	// GridSize 为开局网格边长，<=0 时使用 domain.DefaultGridSize
	GridSize int
	// RequireAllReady 为 true 时，只有全员准备后房主才能开局
	RequireAllReady bool
}

// RoomService 负责房间注册与房间状态机：创建、加入、离开、准备、开局、断线。
// 所有操作在同一把锁内完成，出错时不修改任何状态。
type RoomService struct {
	mu       sync.Mutex
	roomRepo repository.RoomRepository
	opts     RoomOptions
	now      func() time.Time
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(roomRepo repository.RoomRepository, opts RoomOptions) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if opts.GridSize <= 0 {
		opts.GridSize = domain.DefaultGridSize
	}
	return &RoomService{
		roomRepo: roomRepo,
		opts:     opts,
		now:      time.Now,
	}
}

// LeaveResult 描述一次成员移除的结果。
type LeaveResult struct {
	Room        domain.PublicView // 移除后的房间视图，Closed 时为移除前最后的视图
	Closed      bool              // 房间因变空而被销毁
	HostChanged bool
}

// CreateRoom 创建新房间，房主作为唯一成员。
func (s *RoomService) CreateRoom(ctx context.Context, hostConnID, hostName string, maxPlayers int) (domain.PublicView, error) {
	logCtx := logrus.WithField("conn_id", hostConnID)

	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. 生成唯一的房间号
	roomID, err := s.generateUniqueRoomID(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate unique room id")
		return domain.PublicView{}, ErrInternalServer
	}
	logCtx = logCtx.WithField("room_id", roomID)

	// 2. 创建并保存房间
	room := domain.NewRoom(roomID, hostConnID, ResolveName(hostName, hostConnID), maxPlayers, s.now())
	if err := s.roomRepo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrRoomIDTaken) {
			// 持锁期间已校验过，理论上不应发生
			logCtx.WithError(err).Error("Failed to save new room due to room id conflict")
		} else {
			logCtx.WithError(err).Error("Failed to save new room")
		}
		return domain.PublicView{}, ErrInternalServer
	}

	logCtx.WithField("max_players", room.MaxPlayers).Info("Room created successfully")
	return room.View(), nil
}

// JoinRoom 将连接加入房间。检查顺序：房间存在 -> 未开局 -> 已是成员 -> 未满员。
func (s *RoomService) JoinRoom(ctx context.Context, roomID, connID, name string) (domain.PublicView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": connID})

	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Debug("JoinRoom: room lookup failed")
		return domain.PublicView{}, mapRepoError(err)
	}
	if room.State != domain.StateLobby {
		logCtx.Debug("JoinRoom: game already started")
		return domain.PublicView{}, ErrGameAlreadyStarted
	}
	// 大厅中已在该房间的连接直接返回当前视图，不产生重复记录
	if _, ok := room.FindPlayer(connID); ok {
		return room.View(), nil
	}
	if room.IsFull() {
		logCtx.WithField("max_players", room.MaxPlayers).Debug("JoinRoom: room full")
		return domain.PublicView{}, ErrRoomFull
	}

	room.Players = append(room.Players, &domain.Player{
		ConnectionID: connID,
		Name:         ResolveName(name, connID),
	})
	logCtx.WithField("player_count", len(room.Players)).Info("Player joined room")
	return room.View(), nil
}

// LeaveRoom 移除玩家；房主离开时迁移给最早加入的剩余玩家；房间变空时销毁。
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, connID string) (LeaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removePlayer(ctx, roomID, connID)
}

// Disconnect 与 LeaveRoom 语义相同，但由传输层断线触发，从不向外报告错误。
func (s *RoomService) Disconnect(ctx context.Context, roomID, connID string) (LeaveResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.removePlayer(ctx, roomID, connID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": connID}).
			WithError(err).Debug("Disconnect: nothing to clean up")
		return LeaveResult{}, false
	}
	return res, true
}

func (s *RoomService) removePlayer(ctx context.Context, roomID, connID string) (LeaveResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": connID})

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return LeaveResult{}, mapRepoError(err)
	}
	wasHost := room.IsHost(connID)
	lastView := room.View()
	if !room.RemovePlayer(connID) {
		return LeaveResult{}, ErrPlayerNotInRoom
	}

	if len(room.Players) == 0 {
		if err := s.roomRepo.Delete(ctx, roomID); err != nil {
			// 内存实现不会失败；保留日志以便替换实现时排查
			logCtx.WithError(err).Error("Failed to delete empty room")
		}
		logCtx.Info("Room empty, removed from registry")
		return LeaveResult{Room: lastView, Closed: true}, nil
	}

	res := LeaveResult{Room: room.View(), HostChanged: wasHost}
	if wasHost {
		logCtx.WithField("new_host", room.HostConnectionID).Info("Host migrated")
	}
	logCtx.WithField("player_count", len(room.Players)).Info("Player left room")
	return res, nil
}

// ToggleReady 翻转玩家的准备状态并返回新值。
func (s *RoomService) ToggleReady(ctx context.Context, roomID, connID string) (bool, domain.PublicView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return false, domain.PublicView{}, mapRepoError(err)
	}
	player, ok := room.FindPlayer(connID)
	if !ok {
		return false, domain.PublicView{}, ErrPlayerNotInRoom
	}
	player.Ready = !player.Ready
	return player.Ready, room.View(), nil
}

// StartGame 由房主发起开局：切换到 in-game 并分配网格。
func (s *RoomService) StartGame(ctx context.Context, roomID, connID string) (domain.StartPayload, domain.PublicView, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "conn_id": connID})

	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return domain.StartPayload{}, domain.PublicView{}, mapRepoError(err)
	}
	if !room.IsHost(connID) {
		logCtx.Debug("StartGame: caller is not host")
		return domain.StartPayload{}, domain.PublicView{}, ErrNotHost
	}
	if len(room.Players) == 0 {
		return domain.StartPayload{}, domain.PublicView{}, ErrNoPlayers
	}
	if room.State != domain.StateLobby {
		return domain.StartPayload{}, domain.PublicView{}, ErrGameAlreadyStarted
	}
	if s.opts.RequireAllReady && !room.AllReady() {
		return domain.StartPayload{}, domain.PublicView{}, ErrPlayersNotReady
	}

	room.Start(s.opts.GridSize)
	logCtx.WithFields(logrus.Fields{
		"player_count": len(room.Players),
		"grid_size":    s.opts.GridSize,
	}).Info("Game started")
	return room.StartPayload(), room.View(), nil
}

// RenamePlayer 更新房间内玩家的显示名，房主改名时同步 HostName。
func (s *RoomService) RenamePlayer(ctx context.Context, roomID, connID, name string) (domain.PublicView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return domain.PublicView{}, mapRepoError(err)
	}
	player, ok := room.FindPlayer(connID)
	if !ok {
		return domain.PublicView{}, ErrPlayerNotInRoom
	}
	player.Name = ResolveName(name, connID)
	if room.IsHost(connID) {
		room.HostName = player.Name
	}
	return room.View(), nil
}

// GetRoom 返回房间的公开视图。
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (domain.PublicView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return domain.PublicView{}, mapRepoError(err)
	}
	return room.View(), nil
}

// ListRooms 返回所有存活房间的公开视图，供大厅浏览使用。
func (s *RoomService) ListRooms(ctx context.Context) ([]domain.PublicView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms, err := s.roomRepo.List(ctx)
	if err != nil {
		logrus.WithError(err).Error("ListRooms: repository error")
		return nil, ErrInternalServer
	}
	views := make([]domain.PublicView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, room.View())
	}
	return views, nil
}

// --- 私有辅助函数 ---

const roomIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateUniqueRoomID 生成未被占用的房间号，冲突时重试。调用方必须持有 s.mu。
func (s *RoomService) generateUniqueRoomID(ctx context.Context) (string, error) {
	const maxAttempts = 10

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomRoomID()
		if err != nil {
			return "", err
		}
		exists, err := s.roomRepo.IsRoomIDExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("registry error checking room id: %w", err)
		}
		if !exists {
			return code, nil
		}
		logrus.WithField("room_id", code).Warnf("Generated room id already exists, retrying (attempt %d)...", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique room id after %d attempts", maxAttempts)
}

// randomRoomID 以拒绝采样从 roomIDAlphabet 中均匀抽取字符
func randomRoomID() (string, error) {
	// 不小于 limit 的字节会导致取模偏差，直接丢弃
	const limit = 256 - 256%len(roomIDAlphabet)

	code := make([]byte, 0, domain.RoomIDLength)
	buf := make([]byte, domain.RoomIDLength*2)
	for len(code) < domain.RoomIDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, roomIDAlphabet[int(b)%len(roomIDAlphabet)])
			if len(code) == domain.RoomIDLength {
				break
			}
		}
	}
	return string(code), nil
}
