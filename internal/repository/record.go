package repository

import (
	"context"

	"github.com/xemonbae01/Game-idea/internal/domain"
)

// SessionRecordRepository 保存对局审计记录。
type SessionRecordRepository interface {
	Save(ctx context.Context, record *domain.SessionRecord) error

	// FindByRoomID 按发生时间升序返回某个房间号的全部记录。
	FindByRoomID(ctx context.Context, roomID string) ([]domain.SessionRecord, error)
}
