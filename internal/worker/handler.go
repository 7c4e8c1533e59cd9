package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/xemonbae01/Game-idea/internal/domain"
	"github.com/xemonbae01/Game-idea/internal/repository"
	"github.com/xemonbae01/Game-idea/internal/tasks"
)

// SessionRecordHandler 处理审计任务，把房间事件写入 session_records
type SessionRecordHandler struct {
	recordRepo repository.SessionRecordRepository
}

// NewSessionRecordHandler 创建 Handler 实例
func NewSessionRecordHandler(recordRepo repository.SessionRecordRepository) *SessionRecordHandler {
	if recordRepo == nil {
		panic("SessionRecordRepository cannot be nil for SessionRecordHandler")
	}
	return &SessionRecordHandler{recordRepo: recordRepo}
}

// kindFor 将任务类型映射为记录种类
func kindFor(taskType string) (domain.RecordKind, bool) {
	switch taskType {
	case tasks.TypeSessionStarted:
		return domain.RecordSessionStarted, true
	case tasks.TypeRoomClosed:
		return domain.RecordRoomClosed, true
	default:
		return "", false
	}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *SessionRecordHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})

	kind, ok := kindFor(t.Type())
	if !ok {
		return fmt.Errorf("unexpected task type %q: %w", t.Type(), asynq.SkipRetry)
	}

	var payload tasks.RoomEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithField("room_id", payload.Room.ID)

	record, err := domain.NewSessionRecord(kind, payload.Room, payload.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to build session record: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.recordRepo.Save(ctx, &record); err != nil {
		logCtx.WithError(err).Error("Failed to save session record")
		return fmt.Errorf("failed to save session record for room %s: %w", payload.Room.ID, err)
	}

	logCtx.WithField("record_id", record.ID).Info("Session record saved")
	return nil
}
