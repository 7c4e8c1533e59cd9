package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/xemonbae01/Game-idea/internal/domain"
)

// MigrateDB 迁移审计表。房间状态只存在于内存，数据库中只有 session_records。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	if err := db.AutoMigrate(&domain.SessionRecord{}); err != nil {
		logrus.Errorf("Failed to auto-migrate session_records: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	logrus.Info("Database migration completed successfully")
	return nil
}
