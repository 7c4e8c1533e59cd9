package domain

// ConnectionSession 是路由器为每个连接保存的唯一会话上下文。
// 连接建立时创建，断开时销毁；RoomID 为空表示当前不在任何房间。
type ConnectionSession struct {
	ConnectionID string
	RoomID       string
	Name         string
}

func (s *ConnectionSession) InRoom() bool { return s.RoomID != "" }
