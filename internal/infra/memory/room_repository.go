package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xemonbae01/Game-idea/internal/domain"
	"github.com/xemonbae01/Game-idea/internal/repository"
)

// RoomRepository 是 repository.RoomRepository 的进程内实现。
// 进程重启后房间不会保留。
type RoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

var _ repository.RoomRepository = (*RoomRepository)(nil)

// NewRoomRepository 创建空的房间注册表
func NewRoomRepository() *RoomRepository {
	return &RoomRepository{rooms: make(map[string]*domain.Room)}
}

func (r *RoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return room, nil
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[room.ID]; exists {
		return repository.ErrRoomIDTaken
	}
	r.rooms[room.ID] = room
	return nil
}

func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.rooms, id)
	r.mu.Unlock()
	return nil
}

func (r *RoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	r.mu.RLock()
	rooms := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	// map 遍历无序，按创建时间排序保证浏览结果稳定
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func (r *RoomRepository) IsRoomIDExists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[id]
	return ok, nil
}

// Len 返回当前房间数量
func (r *RoomRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
