package service

import (
	"errors"

	"github.com/xemonbae01/Game-idea/internal/repository"
)

// 房间状态机的业务错误，全部可由调用方恢复，且出错时状态不变。
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrRoomFull           = errors.New("room is full")
	ErrNotInRoom          = errors.New("connection is not in a room")
	ErrPlayerNotInRoom    = errors.New("player not in room")
	ErrNotHost            = errors.New("only the host can start the game")
	ErrNoPlayers          = errors.New("room has no players")
	ErrPlayersNotReady    = errors.New("not all players are ready")
	ErrInternalServer     = errors.New("internal server error")
)

// mapRepoError 将仓库层的错误映射到服务层定义的错误。
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrRoomNotFound) {
		return ErrRoomNotFound
	}
	return ErrInternalServer
}
