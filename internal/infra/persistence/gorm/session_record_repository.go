package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/xemonbae01/Game-idea/internal/domain"
	"github.com/xemonbae01/Game-idea/internal/repository"
)

// GormSessionRecordRepository 是 SessionRecordRepository 接口的 GORM 实现
type GormSessionRecordRepository struct {
	db *gorm.DB
}

// NewGormSessionRecordRepository 创建 GormSessionRecordRepository 实例
func NewGormSessionRecordRepository(db *gorm.DB) *GormSessionRecordRepository {
	if db == nil {
		panic("database connection cannot be nil for GormSessionRecordRepository")
	}
	return &GormSessionRecordRepository{db: db}
}

// Save 插入一条审计记录，记录只追加不更新
func (r *GormSessionRecordRepository) Save(ctx context.Context, record *domain.SessionRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save session record (room: %s, kind: %s): %w", record.RoomID, record.Kind, err)
	}
	return nil
}

// FindByRoomID 按发生时间升序返回某房间的全部审计记录
func (r *GormSessionRecordRepository) FindByRoomID(ctx context.Context, roomID string) ([]domain.SessionRecord, error) {
	var records []domain.SessionRecord
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("occurred_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find session records for room %s: %w", roomID, err)
	}
	return records, nil
}
