package service

import (
	"chat_relation_backend/internal/testutil"
	"chat_relation_backend/internal/util"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockUnblockRoundTrip(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B")
	ctx := context.Background()

	before, err := e.blocks.IsBlocked(ctx, ids[0], ids[1])
	require.NoError(t, err)

	require.NoError(t, e.blocks.BlockUser(ctx, ids[0], ids[1]))
	blocked, err := e.blocks.IsBlocked(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.True(t, blocked)

	reverse, err := e.blocks.IsBlocked(ctx, ids[1], ids[0])
	require.NoError(t, err)
	assert.False(t, reverse, "block is directional")

	assert.ErrorIs(t, e.blocks.BlockUser(ctx, ids[0], ids[1]), util.ErrConflict)

	list, err := e.blocks.ListBlocked(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ids[1], list[0].ID)

	require.NoError(t, e.blocks.UnblockUser(ctx, ids[0], ids[1]))
	after, err := e.blocks.IsBlocked(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.Equal(t, before, after)

	assert.ErrorIs(t, e.blocks.UnblockUser(ctx, ids[0], ids[1]), util.ErrConflict)
	assert.ErrorIs(t, e.blocks.UnblockUser(ctx, ids[0], ids[1]), util.ErrConflict)
}

func TestBlockUserValidation(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A")
	ctx := context.Background()

	assert.ErrorIs(t, e.blocks.BlockUser(ctx, ids[0], ids[0]), util.ErrValidation)
	assert.ErrorIs(t, e.blocks.UnblockUser(ctx, ids[0], ids[0]), util.ErrValidation)
	assert.ErrorIs(t, e.blocks.BlockUser(ctx, ids[0], 9999), util.ErrNotFound)
}

func TestConcurrentBlockReportsConflict(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B")
	ctx := context.Background()

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.blocks.BlockUser(ctx, ids[0], ids[1])
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, util.ErrConflict)
	}
	assert.Equal(t, 1, ok)
}

func TestBlockInChat(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B", "C", "D")
	ctx := context.Background()

	chat, err := e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], ids[2]})
	require.NoError(t, err)
	_, err = e.chats.RequestToJoin(ctx, ids[3], chat.ID)
	require.NoError(t, err)

	_, err = e.blocks.BlockInChat(ctx, ids[1], chat.ID, ids[2])
	assert.ErrorIs(t, err, util.ErrAuthorization)

	chat, err = e.blocks.BlockInChat(ctx, ids[0], chat.ID, ids[2])
	require.NoError(t, err)
	assert.NotContains(t, chat.MemberIDs, ids[2])
	assert.Contains(t, chat.ChatBlockedUserIDs, ids[2])

	chat, err = e.blocks.BlockInChat(ctx, ids[0], chat.ID, ids[3])
	require.NoError(t, err)
	assert.Empty(t, chat.PendingJoinRequestIDs)

	_, err = e.blocks.BlockInChat(ctx, ids[0], chat.ID, ids[2])
	assert.ErrorIs(t, err, util.ErrConflict)

	// 会话级屏蔽与用户级屏蔽互不影响
	blocked, err := e.blocks.IsBlocked(ctx, ids[0], ids[2])
	require.NoError(t, err)
	assert.False(t, blocked)

	_, err = e.chats.AddMember(ctx, ids[1], chat.ID, ids[2])
	assert.ErrorIs(t, err, util.ErrConflict)
	_, err = e.chats.RequestToJoin(ctx, ids[2], chat.ID)
	assert.ErrorIs(t, err, util.ErrConflict)

	chat, err = e.blocks.UnblockInChat(ctx, ids[0], chat.ID, ids[2])
	require.NoError(t, err)
	assert.NotContains(t, chat.ChatBlockedUserIDs, ids[2])
	_, err = e.blocks.UnblockInChat(ctx, ids[0], chat.ID, ids[2])
	assert.ErrorIs(t, err, util.ErrConflict)

	chat, err = e.chats.AddMember(ctx, ids[1], chat.ID, ids[2])
	require.NoError(t, err)
	assert.Contains(t, chat.MemberIDs, ids[2])
}

func TestBlockInChatRejectsDirectAndSelf(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B")
	ctx := context.Background()

	direct, err := e.chats.GetOrCreateDirectChat(ctx, ids[0], ids[1])
	require.NoError(t, err)

	_, err = e.blocks.BlockInChat(ctx, ids[0], direct.ID, ids[1])
	assert.ErrorIs(t, err, util.ErrConflict)
	_, err = e.blocks.BlockInChat(ctx, ids[0], direct.ID, ids[0])
	assert.ErrorIs(t, err, util.ErrValidation)
	_, err = e.blocks.BlockInChat(ctx, ids[0], "missing", ids[1])
	assert.ErrorIs(t, err, util.ErrNotFound)
}
