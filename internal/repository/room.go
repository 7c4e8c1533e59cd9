package repository

import (
	"context"

	"github.com/xemonbae01/Game-idea/internal/domain"
)

// RoomRepository 是房间注册表的存储契约：房间 ID 到房间记录的权威映射。
// 实现必须是并发安全的；返回的 *domain.Room 由调用方在自身的串行化保护下修改。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间，不存在时返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// Create 插入新房间，ID 已存在时返回 ErrRoomIDTaken。
	Create(ctx context.Context, room *domain.Room) error

	// Delete 删除房间，房间不存在时不报错。
	Delete(ctx context.Context, id string) error

	// List 返回当前所有存活的房间，按创建时间升序。
	List(ctx context.Context) ([]*domain.Room, error)

	// IsRoomIDExists 检查房间 ID 是否已被占用。
	IsRoomIDExists(ctx context.Context, id string) (bool, error)
}
