package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xemonbae01/Game-idea/internal/domain"
	"github.com/xemonbae01/Game-idea/internal/infra/memory"
	"github.com/xemonbae01/Game-idea/internal/repository"
)

func TestRoomRepository_CreateFindDelete(t *testing.T) {
	repo := memory.NewRoomRepository()
	ctx := context.Background()
	room := domain.NewRoom("ABC123", "conn-a", "alice", 4, time.Now())

	require.NoError(t, repo.Create(ctx, room))

	found, err := repo.FindByID(ctx, "ABC123")
	require.NoError(t, err)
	assert.Same(t, room, found)

	exists, err := repo.IsRoomIDExists(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.Delete(ctx, "ABC123"))
	_, err = repo.FindByID(ctx, "ABC123")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
	assert.Equal(t, 0, repo.Len())

	// 删除不存在的房间不报错
	assert.NoError(t, repo.Delete(ctx, "ABC123"))
}

func TestRoomRepository_CreateDuplicateID(t *testing.T) {
	repo := memory.NewRoomRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewRoom("DUP000", "a", "a", 2, time.Now())))
	err := repo.Create(ctx, domain.NewRoom("DUP000", "b", "b", 2, time.Now()))
	assert.ErrorIs(t, err, repository.ErrRoomIDTaken)

	found, _ := repo.FindByID(ctx, "DUP000")
	assert.Equal(t, "a", found.HostConnectionID, "原房间不应被覆盖")
}

func TestRoomRepository_ListOrderedByCreation(t *testing.T) {
	repo := memory.NewRoomRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, domain.NewRoom("CCCCCC", "c", "c", 2, base.Add(2*time.Second))))
	require.NoError(t, repo.Create(ctx, domain.NewRoom("AAAAAA", "a", "a", 2, base)))
	require.NoError(t, repo.Create(ctx, domain.NewRoom("BBBBBB", "b", "b", 2, base.Add(time.Second))))

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 3)
	assert.Equal(t, "AAAAAA", rooms[0].ID)
	assert.Equal(t, "BBBBBB", rooms[1].ID)
	assert.Equal(t, "CCCCCC", rooms[2].ID)
}
