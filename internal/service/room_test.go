package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xemonbae01/Game-idea/internal/domain"
	"github.com/xemonbae01/Game-idea/internal/infra/memory"
	"github.com/xemonbae01/Game-idea/internal/repository"
	"github.com/xemonbae01/Game-idea/internal/repository/mocks"
	"github.com/xemonbae01/Game-idea/internal/service"
)

func newTestService(opts service.RoomOptions) (*service.RoomService, *memory.RoomRepository) {
	repo := memory.NewRoomRepository()
	return service.NewRoomService(repo, opts), repo
}

// --- CreateRoom ---

func TestRoomService_CreateRoom_Success(t *testing.T) {
	svc, repo := newTestService(service.RoomOptions{})
	ctx := context.Background()

	view, err := svc.CreateRoom(ctx, "conn-a", "  alice  ", 6)
	require.NoError(t, err)

	assert.Regexp(t, `^[0-9A-Z]{6}$`, view.ID, "房间号应为 6 位大写字母数字")
	assert.Equal(t, "conn-a", view.Host)
	assert.Equal(t, "alice", view.HostName, "名字应去除首尾空白")
	assert.Equal(t, domain.StateLobby, view.State)
	assert.Equal(t, 6, view.MaxPlayers)
	require.Len(t, view.Players, 1)
	assert.Equal(t, domain.PlayerView{ID: "conn-a", Name: "alice", Ready: false}, view.Players[0])
	assert.Equal(t, 1, repo.Len())
}

func TestRoomService_CreateRoom_ClampsMaxPlayers(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()

	cases := map[int]int{-3: 2, 0: 2, 1: 2, 2: 2, 4: 4, 6: 6, 7: 6, 100: 6}
	for in, want := range cases {
		view, err := svc.CreateRoom(ctx, "conn", "n", in)
		require.NoError(t, err)
		assert.Equal(t, want, view.MaxPlayers, "maxPlayers=%d", in)
	}
}

func TestRoomService_CreateRoom_DefaultName(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})

	view, err := svc.CreateRoom(context.Background(), "ab12-xyz", "   ", 4)
	require.NoError(t, err)
	assert.Equal(t, "Player-AB12", view.HostName)
}

func TestRoomService_CreateRoom_RetriesOnIDCollision(t *testing.T) {
	mockRepo := new(mocks.RoomRepository)
	svc := service.NewRoomService(mockRepo, service.RoomOptions{})
	ctx := context.Background()

	// 前两次生成的房间号均已被占用
	mockRepo.On("IsRoomIDExists", ctx, mock.AnythingOfType("string")).Return(true, nil).Twice()
	mockRepo.On("IsRoomIDExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*domain.Room")).Return(nil).Once()

	view, err := svc.CreateRoom(ctx, "conn-a", "alice", 4)
	require.NoError(t, err)
	assert.Len(t, view.ID, domain.RoomIDLength)

	mockRepo.AssertExpectations(t)
	mockRepo.AssertNumberOfCalls(t, "IsRoomIDExists", 3)
}

func TestRoomService_CreateRoom_GivesUpAfterMaxAttempts(t *testing.T) {
	mockRepo := new(mocks.RoomRepository)
	svc := service.NewRoomService(mockRepo, service.RoomOptions{})
	ctx := context.Background()

	mockRepo.On("IsRoomIDExists", ctx, mock.AnythingOfType("string")).Return(true, nil)

	_, err := svc.CreateRoom(ctx, "conn-a", "alice", 4)
	assert.ErrorIs(t, err, service.ErrInternalServer)
	mockRepo.AssertNumberOfCalls(t, "IsRoomIDExists", 10)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRoomService_CreateRoom_RegistryError(t *testing.T) {
	mockRepo := new(mocks.RoomRepository)
	svc := service.NewRoomService(mockRepo, service.RoomOptions{})
	ctx := context.Background()

	mockRepo.On("IsRoomIDExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*domain.Room")).Return(errors.New("boom")).Once()

	_, err := svc.CreateRoom(ctx, "conn-a", "alice", 4)
	assert.ErrorIs(t, err, service.ErrInternalServer)
	mockRepo.AssertExpectations(t)
}

// --- JoinRoom ---

func TestRoomService_JoinRoom_Success(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, err := svc.CreateRoom(ctx, "conn-a", "alice", 4)
	require.NoError(t, err)

	view, err := svc.JoinRoom(ctx, created.ID, "conn-b", "bob")
	require.NoError(t, err)
	require.Len(t, view.Players, 2)
	assert.Equal(t, "conn-a", view.Host, "加入不改变房主")
	assert.Equal(t, domain.PlayerView{ID: "conn-b", Name: "bob"}, view.Players[1])
}

func TestRoomService_JoinRoom_NotFound(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})

	_, err := svc.JoinRoom(context.Background(), "NOPE00", "conn-b", "bob")
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestRoomService_JoinRoom_Full(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, err := svc.CreateRoom(ctx, "conn-a", "alice", 2)
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, created.ID, "conn-b", "bob")
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, created.ID, "conn-c", "carol")
	assert.ErrorIs(t, err, service.ErrRoomFull)

	view, err := svc.GetRoom(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, view.Players, 2, "满员时成员数不应改变")
}

func TestRoomService_JoinRoom_AlreadyStartedTakesPrecedenceOverFull(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 2)
	_, err := svc.JoinRoom(ctx, created.ID, "conn-b", "bob")
	require.NoError(t, err)
	_, _, err = svc.StartGame(ctx, created.ID, "conn-a")
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, created.ID, "conn-c", "carol")
	assert.ErrorIs(t, err, service.ErrGameAlreadyStarted)
}

func TestRoomService_JoinRoom_SameConnectionTwice(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)

	_, err := svc.JoinRoom(ctx, created.ID, "conn-b", "bob")
	require.NoError(t, err)
	view, err := svc.JoinRoom(ctx, created.ID, "conn-b", "bobby")
	require.NoError(t, err)

	assert.Len(t, view.Players, 2, "重复加入不应产生重复记录")
	assert.Equal(t, "bob", view.Players[1].Name)
}

func TestRoomService_JoinRoom_MemberRejoinAfterStartFails(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 2)
	_, err := svc.JoinRoom(ctx, created.ID, "conn-b", "bob")
	require.NoError(t, err)
	_, _, err = svc.StartGame(ctx, created.ID, "conn-a")
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, created.ID, "conn-b", "bob")
	assert.ErrorIs(t, err, service.ErrGameAlreadyStarted)

	view, err := svc.GetRoom(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, view.Players, 2)
	assert.Equal(t, domain.StateInGame, view.State)
}

func TestRoomService_JoinRoom_MemberRejoinOfFullLobby(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 2)
	_, err := svc.JoinRoom(ctx, created.ID, "conn-b", "bob")
	require.NoError(t, err)

	view, err := svc.JoinRoom(ctx, created.ID, "conn-b", "bob")
	require.NoError(t, err, "已是成员的连接不应因满员被拒绝")
	assert.Len(t, view.Players, 2)
}

// --- LeaveRoom / Disconnect ---

func TestRoomService_LeaveRoom_HostMigratesToEarliestJoiner(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)
	_, _ = svc.JoinRoom(ctx, created.ID, "conn-b", "bob")
	_, _ = svc.JoinRoom(ctx, created.ID, "conn-c", "carol")

	res, err := svc.LeaveRoom(ctx, created.ID, "conn-a")
	require.NoError(t, err)

	assert.False(t, res.Closed)
	assert.True(t, res.HostChanged)
	assert.Equal(t, "conn-b", res.Room.Host)
	assert.Equal(t, "bob", res.Room.HostName)
	assert.Len(t, res.Room.Players, 2)
}

func TestRoomService_LeaveRoom_NonHostKeepsHost(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)
	_, _ = svc.JoinRoom(ctx, created.ID, "conn-b", "bob")

	res, err := svc.LeaveRoom(ctx, created.ID, "conn-b")
	require.NoError(t, err)
	assert.False(t, res.HostChanged)
	assert.Equal(t, "conn-a", res.Room.Host)
}

func TestRoomService_LeaveRoom_LastPlayerDestroysRoom(t *testing.T) {
	svc, repo := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)

	res, err := svc.LeaveRoom(ctx, created.ID, "conn-a")
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.Equal(t, created.ID, res.Room.ID)
	assert.Equal(t, 0, repo.Len(), "空房间必须立即从注册表移除")

	_, err = svc.GetRoom(ctx, created.ID)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestRoomService_LeaveRoom_Errors(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)

	_, err := svc.LeaveRoom(ctx, "NOPE00", "conn-a")
	assert.ErrorIs(t, err, service.ErrRoomNotFound)

	_, err = svc.LeaveRoom(ctx, created.ID, "stranger")
	assert.ErrorIs(t, err, service.ErrPlayerNotInRoom)
}

func TestRoomService_Disconnect_HostFromThreePlayerRoom(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)
	_, _ = svc.JoinRoom(ctx, created.ID, "conn-b", "bob")
	_, _ = svc.JoinRoom(ctx, created.ID, "conn-c", "carol")

	res, ok := svc.Disconnect(ctx, created.ID, "conn-a")
	require.True(t, ok)
	assert.Equal(t, "conn-b", res.Room.Host)
	assert.Equal(t, []domain.PlayerView{
		{ID: "conn-b", Name: "bob"},
		{ID: "conn-c", Name: "carol"},
	}, res.Room.Players)
}

func TestRoomService_Disconnect_UnknownRoomIsSilent(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})

	_, ok := svc.Disconnect(context.Background(), "NOPE00", "conn-a")
	assert.False(t, ok)
}

// --- ToggleReady ---

func TestRoomService_ToggleReady(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)

	ready, view, err := svc.ToggleReady(ctx, created.ID, "conn-a")
	require.NoError(t, err)
	assert.True(t, ready)
	assert.True(t, view.Players[0].Ready)

	ready, _, err = svc.ToggleReady(ctx, created.ID, "conn-a")
	require.NoError(t, err)
	assert.False(t, ready)

	_, _, err = svc.ToggleReady(ctx, created.ID, "stranger")
	assert.ErrorIs(t, err, service.ErrPlayerNotInRoom)

	_, _, err = svc.ToggleReady(ctx, "NOPE00", "conn-a")
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

// --- StartGame ---

func TestRoomService_StartGame_Success(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 6)
	_, _ = svc.JoinRoom(ctx, created.ID, "conn-b", "bob")

	payload, view, err := svc.StartGame(ctx, created.ID, "conn-a")
	require.NoError(t, err)

	assert.Equal(t, domain.StateInGame, view.State)
	assert.Equal(t, created.ID, payload.RoomID)
	assert.Equal(t, 30, payload.GridSize)
	require.Len(t, payload.Grid, 30)
	for _, row := range payload.Grid {
		require.Len(t, row, 30)
		for _, cell := range row {
			assert.Equal(t, domain.Cell{Type: domain.CellEmpty, HP: 0}, cell)
		}
	}
	assert.Equal(t, []domain.RosterEntry{
		{ID: "conn-a", Name: "alice"},
		{ID: "conn-b", Name: "bob"},
	}, payload.Players)
}

func TestRoomService_StartGame_CustomGridSize(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{GridSize: 8})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 2)

	payload, _, err := svc.StartGame(ctx, created.ID, "conn-a")
	require.NoError(t, err)
	assert.Equal(t, 8, payload.GridSize)
	assert.Len(t, payload.Grid, 8)
}

func TestRoomService_StartGame_NotHost(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)
	_, _ = svc.JoinRoom(ctx, created.ID, "conn-b", "bob")

	_, _, err := svc.StartGame(ctx, created.ID, "conn-b")
	assert.ErrorIs(t, err, service.ErrNotHost)

	view, _ := svc.GetRoom(ctx, created.ID)
	assert.Equal(t, domain.StateLobby, view.State, "非房主开局后状态必须仍为 lobby")
}

func TestRoomService_StartGame_Twice(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)

	_, _, err := svc.StartGame(ctx, created.ID, "conn-a")
	require.NoError(t, err)
	_, _, err = svc.StartGame(ctx, created.ID, "conn-a")
	assert.ErrorIs(t, err, service.ErrGameAlreadyStarted)
}

func TestRoomService_StartGame_ReadyGate(t *testing.T) {
	ctx := context.Background()

	t.Run("inert by default", func(t *testing.T) {
		svc, _ := newTestService(service.RoomOptions{})
		created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)
		_, _ = svc.JoinRoom(ctx, created.ID, "conn-b", "bob")

		_, _, err := svc.StartGame(ctx, created.ID, "conn-a")
		assert.NoError(t, err)
	})

	t.Run("enforced when enabled", func(t *testing.T) {
		svc, _ := newTestService(service.RoomOptions{RequireAllReady: true})
		created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)
		_, _ = svc.JoinRoom(ctx, created.ID, "conn-b", "bob")
		_, _, _ = svc.ToggleReady(ctx, created.ID, "conn-a")

		_, _, err := svc.StartGame(ctx, created.ID, "conn-a")
		assert.ErrorIs(t, err, service.ErrPlayersNotReady)

		_, _, _ = svc.ToggleReady(ctx, created.ID, "conn-b")
		_, view, err := svc.StartGame(ctx, created.ID, "conn-a")
		require.NoError(t, err)
		assert.Equal(t, domain.StateInGame, view.State)
	})
}

func TestRoomService_StartGame_NoPlayers(t *testing.T) {
	mockRepo := new(mocks.RoomRepository)
	svc := service.NewRoomService(mockRepo, service.RoomOptions{})
	ctx := context.Background()

	// 正常流程下不可达：构造一个没有成员但房主字段仍指向调用者的房间
	empty := &domain.Room{ID: "EMPTY0", HostConnectionID: "conn-a", MaxPlayers: 4, State: domain.StateLobby}
	mockRepo.On("FindByID", ctx, "EMPTY0").Return(empty, nil).Once()

	_, _, err := svc.StartGame(ctx, "EMPTY0", "conn-a")
	assert.ErrorIs(t, err, service.ErrNoPlayers)
	assert.Nil(t, empty.Grid)
	mockRepo.AssertExpectations(t)
}

func TestRoomService_RepositoryFailureMapsToInternal(t *testing.T) {
	mockRepo := new(mocks.RoomRepository)
	svc := service.NewRoomService(mockRepo, service.RoomOptions{})
	ctx := context.Background()

	mockRepo.On("FindByID", ctx, "ABCDEF").Return(nil, errors.New("connection reset")).Once()
	mockRepo.On("FindByID", ctx, "MISSIN").Return(nil, repository.ErrRoomNotFound).Once()

	_, err := svc.GetRoom(ctx, "ABCDEF")
	assert.ErrorIs(t, err, service.ErrInternalServer)
	_, err = svc.GetRoom(ctx, "MISSIN")
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
	mockRepo.AssertExpectations(t)
}

// --- RenamePlayer / ListRooms ---

func TestRoomService_RenamePlayer_UpdatesHostName(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()
	created, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)
	_, _ = svc.JoinRoom(ctx, created.ID, "conn-b", "bob")

	view, err := svc.RenamePlayer(ctx, created.ID, "conn-a", "Alicia")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", view.HostName)
	assert.Equal(t, "Alicia", view.Players[0].Name)

	view, err = svc.RenamePlayer(ctx, created.ID, "conn-b", "")
	require.NoError(t, err)
	assert.Equal(t, "Player-CONN", view.Players[1].Name)
	assert.Equal(t, "Alicia", view.HostName)

	_, err = svc.RenamePlayer(ctx, created.ID, "stranger", "x")
	assert.ErrorIs(t, err, service.ErrPlayerNotInRoom)
}

func TestRoomService_ListRooms(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()

	rooms, err := svc.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	first, _ := svc.CreateRoom(ctx, "conn-a", "alice", 4)
	second, _ := svc.CreateRoom(ctx, "conn-b", "bob", 2)

	rooms, err = svc.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	ids := []string{rooms[0].ID, rooms[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
}

// --- 完整场景 ---

func TestRoomService_Scenario_CreateJoinStartThenLateJoin(t *testing.T) {
	svc, _ := newTestService(service.RoomOptions{})
	ctx := context.Background()

	created, err := svc.CreateRoom(ctx, "A", "a", 6)
	require.NoError(t, err)
	assert.Len(t, created.Players, 1)
	assert.Equal(t, "A", created.Host)

	joined, err := svc.JoinRoom(ctx, created.ID, "B", "b")
	require.NoError(t, err)
	assert.Len(t, joined.Players, 2)

	payload, _, err := svc.StartGame(ctx, created.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, 30, payload.GridSize)

	_, err = svc.JoinRoom(ctx, created.ID, "C", "c")
	assert.ErrorIs(t, err, service.ErrGameAlreadyStarted)

	view, _ := svc.GetRoom(ctx, created.ID)
	assert.Len(t, view.Players, 2)
	assert.Equal(t, domain.StateInGame, view.State)
}
