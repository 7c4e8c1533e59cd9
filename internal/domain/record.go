package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecordKind 区分审计记录的种类。
type RecordKind string

const (
	RecordSessionStarted RecordKind = "session_started"
	RecordRoomClosed     RecordKind = "room_closed"
)

// SessionRecord 是写入数据库的只追加审计记录。
// 它只记录历史，从不用于恢复房间状态。
type SessionRecord struct {
	ID          uint       `gorm:"primaryKey"`
	RoomID      string     `gorm:"size:16;index;not null"`
	Kind        RecordKind `gorm:"size:32;index;not null"`
	HostName    string     `gorm:"size:64"`
	PlayerCount int        `gorm:"not null"`
	Players     string     `gorm:"type:text"` // 名单的 JSON 数组
	OccurredAt  time.Time  `gorm:"index;not null"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
}

// NewSessionRecord 由房间视图生成审计记录。
func NewSessionRecord(kind RecordKind, view PublicView, at time.Time) (SessionRecord, error) {
	rec := SessionRecord{
		RoomID:      view.ID,
		Kind:        kind,
		HostName:    view.HostName,
		PlayerCount: len(view.Players),
		OccurredAt:  at.UTC(),
	}
	if err := rec.SetPlayers(view.Players); err != nil {
		return SessionRecord{}, err
	}
	return rec, nil
}

func (r *SessionRecord) SetPlayers(players []PlayerView) error {
	if players == nil {
		players = []PlayerView{}
	}
	b, err := json.Marshal(players)
	if err != nil {
		return fmt.Errorf("failed to marshal record players: %w", err)
	}
	r.Players = string(b)
	return nil
}

// ParsePlayers 解析 Players 字段中的名单。
func (r *SessionRecord) ParsePlayers() ([]PlayerView, error) {
	var players []PlayerView
	if r.Players == "" {
		return players, nil
	}
	if err := json.Unmarshal([]byte(r.Players), &players); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record players: %w", err)
	}
	return players, nil
}
