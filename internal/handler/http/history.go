package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/xemonbae01/Game-idea/internal/domain"
	"github.com/xemonbae01/Game-idea/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HistoryHandler 提供审计记录的查询接口，只在配置了数据库时注册
type HistoryHandler struct {
	recordRepo repository.SessionRecordRepository
}

// NewHistoryHandler 创建 HistoryHandler 实例
func NewHistoryHandler(recordRepo repository.SessionRecordRepository) *HistoryHandler {
	if recordRepo == nil {
		panic("SessionRecordRepository cannot be nil for HistoryHandler")
	}
	return &HistoryHandler{recordRepo: recordRepo}
}

// HistoryEntry 是单条审计记录的响应结构
type HistoryEntry struct {
	Kind        domain.RecordKind   `json:"kind"`
	HostName    string              `json:"hostName"`
	PlayerCount int                 `json:"playerCount"`
	Players     []domain.PlayerView `json:"players"`
	OccurredAt  time.Time           `json:"occurredAt"`
}

// GetHistory 返回某房间号的审计记录
// GET /api/rooms/:roomId/history
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	roomID := strings.ToUpper(strings.TrimSpace(c.Param("roomId")))
	logCtx := logrus.WithField("room_id", roomID)

	records, err := h.recordRepo.FindByRoomID(c.Request.Context(), roomID)
	if err != nil {
		logCtx.WithError(err).Error("Handler.GetHistory: failed to load records")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to load room history")
		return
	}

	entries := make([]HistoryEntry, 0, len(records))
	for i := range records {
		players, err := records[i].ParsePlayers()
		if err != nil {
			// 损坏的名单不影响其他字段
			logCtx.WithError(err).WithField("record_id", records[i].ID).Warn("Handler.GetHistory: bad player list")
		}
		entries = append(entries, HistoryEntry{
			Kind:        records[i].Kind,
			HostName:    records[i].HostName,
			PlayerCount: records[i].PlayerCount,
			Players:     players,
			OccurredAt:  records[i].OccurredAt,
		})
	}
	SuccessResponse(c, http.StatusOK, gin.H{"roomId": roomID, "history": entries})
}
