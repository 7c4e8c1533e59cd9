package domain

import "time"

// 房间容量与网格的固定参数
const (
	MinPlayers      = 2  // maxPlayers 下限
	MaxPlayers      = 6  // maxPlayers 上限
	DefaultPlayers  = 4  // 客户端未提供 maxPlayers 时使用
	DefaultGridSize = 30 // 开局时分配的网格边长
	RoomIDLength    = 6  // 房间号长度
)

// RoomState 表示房间所处阶段，只能 lobby -> in-game 单向迁移。
type RoomState string

const (
	StateLobby  RoomState = "lobby"
	StateInGame RoomState = "in-game"
)

// Player 表示房间中的一个玩家，以连接 ID 作为主键。
type Player struct {
	ConnectionID string
	Name         string
	Ready        bool
}

// Room 表示一个对局房间。
// 不变量：Players 非空；HostConnectionID 必须是 Players 中的某个成员；
// Grid 仅在 State == StateInGame 时非 nil。
type Room struct {
	ID               string
	HostConnectionID string
	HostName         string
	Players          []*Player // 按加入顺序排列，players[0] 为最早加入者
	MaxPlayers       int
	State            RoomState
	Grid             Grid
	CreatedAt        time.Time
}

// ClampMaxPlayers 将 maxPlayers 限制在 [MinPlayers, MaxPlayers] 区间内。
func ClampMaxPlayers(n int) int {
	if n < MinPlayers {
		return MinPlayers
	}
	if n > MaxPlayers {
		return MaxPlayers
	}
	return n
}

// NewRoom 创建一个处于 lobby 阶段、只有房主一人的房间。
func NewRoom(id, hostConnectionID, hostName string, maxPlayers int, now time.Time) *Room {
	return &Room{
		ID:               id,
		HostConnectionID: hostConnectionID,
		HostName:         hostName,
		Players:          []*Player{{ConnectionID: hostConnectionID, Name: hostName}},
		MaxPlayers:       ClampMaxPlayers(maxPlayers),
		State:            StateLobby,
		CreatedAt:        now,
	}
}

// PlayerIndex 返回玩家在 Players 中的下标，不存在时返回 -1。
func (r *Room) PlayerIndex(connectionID string) int {
	for i, p := range r.Players {
		if p.ConnectionID == connectionID {
			return i
		}
	}
	return -1
}

// FindPlayer 按连接 ID 查找玩家。
func (r *Room) FindPlayer(connectionID string) (*Player, bool) {
	if i := r.PlayerIndex(connectionID); i >= 0 {
		return r.Players[i], true
	}
	return nil, false
}

func (r *Room) IsFull() bool { return len(r.Players) >= r.MaxPlayers }

func (r *Room) IsHost(connectionID string) bool { return r.HostConnectionID == connectionID }

// AllReady 报告是否所有玩家都已准备。
func (r *Room) AllReady() bool {
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// RemovePlayer 移除玩家并在必要时迁移房主。
// 返回 false 表示该连接不在房间中。房间变空时 Players 为空，由调用方负责销毁房间。
func (r *Room) RemovePlayer(connectionID string) bool {
	i := r.PlayerIndex(connectionID)
	if i < 0 {
		return false
	}
	r.Players = append(r.Players[:i], r.Players[i+1:]...)
	if len(r.Players) == 0 {
		return true
	}
	if r.HostConnectionID == connectionID {
		// 房主继承给最早加入且仍在房间中的玩家
		r.HostConnectionID = r.Players[0].ConnectionID
		r.HostName = r.Players[0].Name
	}
	return true
}

// Start 将房间切换到 in-game 并分配空白网格。
func (r *Room) Start(gridSize int) {
	r.State = StateInGame
	r.Grid = NewGrid(gridSize)
}

// View 构造广播给所有成员的公开视图（深拷贝，可在锁外安全使用）。
func (r *Room) View() PublicView {
	players := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, PlayerView{ID: p.ConnectionID, Name: p.Name, Ready: p.Ready})
	}
	return PublicView{
		ID:         r.ID,
		Host:       r.HostConnectionID,
		HostName:   r.HostName,
		Players:    players,
		State:      r.State,
		MaxPlayers: r.MaxPlayers,
	}
}

// StartPayload 构造 game-start 广播内容，名单不包含准备状态。
func (r *Room) StartPayload() StartPayload {
	roster := make([]RosterEntry, 0, len(r.Players))
	for _, p := range r.Players {
		roster = append(roster, RosterEntry{ID: p.ConnectionID, Name: p.Name})
	}
	return StartPayload{
		RoomID:   r.ID,
		GridSize: len(r.Grid),
		Grid:     r.Grid.Clone(),
		Players:  roster,
	}
}

// PlayerView 是公开视图中的玩家条目。
type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// PublicView 是可以安全广播给房间所有成员的房间状态子集。
type PublicView struct {
	ID         string       `json:"id"`
	Host       string       `json:"host"`
	HostName   string       `json:"hostName"`
	Players    []PlayerView `json:"players"`
	State      RoomState    `json:"state"`
	MaxPlayers int          `json:"maxPlayers"`
}

type RosterEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StartPayload 是 game-start 事件携带的数据。
type StartPayload struct {
	RoomID   string        `json:"roomId"`
	GridSize int           `json:"gridSize"`
	Grid     Grid          `json:"grid"`
	Players  []RosterEntry `json:"players"`
}
