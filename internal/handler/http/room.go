package http

import (
	"net/http"
	"strings"

	"github.com/xemonbae01/Game-idea/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RoomHandler 提供房间浏览的只读 HTTP 接口，房间的修改只能通过 WebSocket 事件完成。
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

// ListRooms 返回所有存活房间的公开视图
// GET /api/rooms
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

// GetRoom 返回单个房间的公开视图
// GET /api/rooms/:roomId
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := strings.ToUpper(strings.TrimSpace(c.Param("roomId")))
	if roomID == "" {
		ErrorResponse(c, http.StatusBadRequest, "room id is required")
		return
	}
	view, err := h.roomService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Debug("Handler.GetRoom: lookup failed")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"room": view})
}
