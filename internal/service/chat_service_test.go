package service

import (
	"chat_relation_backend/internal/config"
	"chat_relation_backend/internal/model"
	"chat_relation_backend/internal/testutil"
	"chat_relation_backend/internal/util"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateDirectChatIsUnorderedAndStable(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B")
	ctx := context.Background()

	first, err := e.chats.GetOrCreateDirectChat(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.False(t, first.IsGroupChat)
	assert.Equal(t, []uint{ids[0], ids[1]}, first.MemberIDs)
	assert.Nil(t, first.GroupAdminID)

	again, err := e.chats.GetOrCreateDirectChat(ctx, ids[0], ids[1])
	require.NoError(t, err)
	reversed, err := e.chats.GetOrCreateDirectChat(ctx, ids[1], ids[0])
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.ID, reversed.ID)
}

func TestGetOrCreateDirectChatConcurrent(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B")
	ctx := context.Background()

	const callers = 16
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := ids[0], ids[1]
			if i%2 == 1 {
				a, b = b, a
			}
			chat, err := e.chats.GetOrCreateDirectChat(ctx, a, b)
			if assert.NoError(t, err) {
				results[i] = chat.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range results {
		assert.Equal(t, results[0], id)
	}
	var count int64
	require.NoError(t, e.db.Model(&model.Chat{}).Where("is_group_chat = ?", false).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGetOrCreateDirectChatValidation(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A")
	ctx := context.Background()

	_, err := e.chats.GetOrCreateDirectChat(ctx, ids[0], ids[0])
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.chats.GetOrCreateDirectChat(ctx, ids[0], 9999)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestCreateGroupChat(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B", "C")
	ctx := context.Background()

	_, err := e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1]})
	assert.ErrorIs(t, err, util.ErrValidation, "only two members in total")

	_, err = e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], ids[1], ids[0]})
	assert.ErrorIs(t, err, util.ErrValidation, "duplicates do not count")

	_, err = e.chats.CreateGroupChat(ctx, ids[0], "  ", []uint{ids[1], ids[2]})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], 9999})
	assert.ErrorIs(t, err, util.ErrNotFound)

	chat, err := e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], ids[2]})
	require.NoError(t, err)
	assert.True(t, chat.IsGroupChat)
	assert.Equal(t, "Team", chat.ChatName)
	assert.Equal(t, []uint{ids[0], ids[1], ids[2]}, chat.MemberIDs)
	require.NotNil(t, chat.GroupAdminID)
	assert.Equal(t, ids[0], *chat.GroupAdminID)
	assert.Contains(t, chat.MemberIDs, *chat.GroupAdminID)
}

func TestRenameChat(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B", "C", "D")
	ctx := context.Background()

	chat, err := e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], ids[2]})
	require.NoError(t, err)

	_, err = e.chats.RenameChat(ctx, ids[3], chat.ID, "Crew")
	assert.ErrorIs(t, err, util.ErrAuthorization)

	renamed, err := e.chats.RenameChat(ctx, ids[1], chat.ID, "Crew")
	require.NoError(t, err)
	assert.Equal(t, "Crew", renamed.ChatName)

	_, err = e.chats.RenameChat(ctx, ids[1], chat.ID, "")
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.chats.RenameChat(ctx, ids[1], "missing", "Crew")
	assert.ErrorIs(t, err, util.ErrNotFound)

	e.chats.SetPolicy(config.ChatConfig{RenameRequiresAdmin: true})
	_, err = e.chats.RenameChat(ctx, ids[1], chat.ID, "Squad")
	assert.ErrorIs(t, err, util.ErrAuthorization)
	_, err = e.chats.RenameChat(ctx, ids[0], chat.ID, "Squad")
	assert.NoError(t, err)
}

func TestRemoveMemberTransfersAdmin(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B", "C")
	ctx := context.Background()

	chat, err := e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], ids[2]})
	require.NoError(t, err)

	chat, err = e.chats.RemoveMember(ctx, ids[0], chat.ID, ids[0])
	require.NoError(t, err)
	assert.Equal(t, []uint{ids[1], ids[2]}, chat.MemberIDs)
	require.NotNil(t, chat.GroupAdminID)
	assert.Equal(t, ids[1], *chat.GroupAdminID)

	// 移除不存在的成员是幂等的
	again, err := e.chats.RemoveMember(ctx, ids[1], chat.ID, ids[0])
	require.NoError(t, err)
	assert.Equal(t, chat.MemberIDs, again.MemberIDs)

	_, err = e.chats.RemoveMember(ctx, ids[1], chat.ID, ids[1])
	require.NoError(t, err)
	chat, err = e.chats.RemoveMember(ctx, ids[2], chat.ID, ids[2])
	require.NoError(t, err)
	assert.Empty(t, chat.MemberIDs)
	assert.Nil(t, chat.GroupAdminID, "empty group is orphaned, not deleted")

	_, err = e.chats.GetChat(ctx, chat.ID)
	assert.NoError(t, err)
}

func TestAddMemberRules(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B", "C", "D", "E")
	ctx := context.Background()

	chat, err := e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], ids[2]})
	require.NoError(t, err)

	chat, err = e.chats.AddMember(ctx, ids[1], chat.ID, ids[3])
	require.NoError(t, err)
	assert.Equal(t, []uint{ids[0], ids[1], ids[2], ids[3]}, chat.MemberIDs)

	chat, err = e.chats.AddMember(ctx, ids[1], chat.ID, ids[3])
	require.NoError(t, err, "adding an existing member is idempotent")
	assert.Len(t, chat.MemberIDs, 4)

	// E 屏蔽了 C，或者反过来，都不能共处一个群
	require.NoError(t, e.blocks.BlockUser(ctx, ids[4], ids[2]))
	_, err = e.chats.AddMember(ctx, ids[0], chat.ID, ids[4])
	assert.ErrorIs(t, err, util.ErrConflict)
	require.NoError(t, e.blocks.UnblockUser(ctx, ids[4], ids[2]))
	require.NoError(t, e.blocks.BlockUser(ctx, ids[2], ids[4]))
	_, err = e.chats.AddMember(ctx, ids[0], chat.ID, ids[4])
	assert.ErrorIs(t, err, util.ErrConflict)

	_, err = e.chats.AddMember(ctx, ids[4], chat.ID, ids[4])
	assert.ErrorIs(t, err, util.ErrAuthorization, "outsiders cannot add themselves")
	_, err = e.chats.RemoveMember(ctx, ids[4], chat.ID, ids[1])
	assert.ErrorIs(t, err, util.ErrAuthorization)

	_, err = e.chats.AddMember(ctx, ids[0], "missing", ids[4])
	assert.ErrorIs(t, err, util.ErrNotFound)
	_, err = e.chats.AddMember(ctx, ids[0], chat.ID, 9999)
	assert.ErrorIs(t, err, util.ErrNotFound)

	direct, err := e.chats.GetOrCreateDirectChat(ctx, ids[0], ids[1])
	require.NoError(t, err)
	_, err = e.chats.AddMember(ctx, ids[0], direct.ID, ids[2])
	assert.ErrorIs(t, err, util.ErrConflict)
	_, err = e.chats.RemoveMember(ctx, ids[0], direct.ID, ids[1])
	assert.ErrorIs(t, err, util.ErrConflict)
}

func TestMembershipRequiresAdminPolicy(t *testing.T) {
	e := newEngineWithPolicy(t, config.ChatConfig{MembershipRequiresAdmin: true}, config.VisibilityConfig{})
	ids := testutil.SeedUsers(t, e.db, "A", "B", "C", "D")
	ctx := context.Background()

	chat, err := e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], ids[2]})
	require.NoError(t, err)

	_, err = e.chats.AddMember(ctx, ids[1], chat.ID, ids[3])
	assert.ErrorIs(t, err, util.ErrAuthorization)
	_, err = e.chats.RemoveMember(ctx, ids[1], chat.ID, ids[2])
	assert.ErrorIs(t, err, util.ErrAuthorization)

	chat, err = e.chats.RemoveMember(ctx, ids[2], chat.ID, ids[2])
	require.NoError(t, err, "members may always leave")
	assert.NotContains(t, chat.MemberIDs, ids[2])
}

func TestConcurrentAddRemoveSerializes(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B", "C", "D")
	ctx := context.Background()

	chat, err := e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], ids[2]})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := e.chats.AddMember(ctx, ids[0], chat.ID, ids[3])
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := e.chats.RemoveMember(ctx, ids[0], chat.ID, ids[3])
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := e.chats.GetChat(ctx, chat.ID)
	require.NoError(t, err)
	var rows int64
	require.NoError(t, e.db.Model(&model.ChatMember{}).Where("chat_id = ? AND user_id = ?", chat.ID, ids[3]).Count(&rows).Error)
	assert.LessOrEqual(t, rows, int64(1))
	assert.Equal(t, rows == 1, final.HasMember(ids[3]))
}

func TestJoinRequests(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B", "C", "D", "E")
	ctx := context.Background()

	chat, err := e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], ids[2]})
	require.NoError(t, err)

	chat, err = e.chats.RequestToJoin(ctx, ids[3], chat.ID)
	require.NoError(t, err)
	chat, err = e.chats.RequestToJoin(ctx, ids[3], chat.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{ids[3]}, chat.PendingJoinRequestIDs)

	_, err = e.chats.RequestToJoin(ctx, ids[3], "missing")
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = e.chats.ApproveJoinRequest(ctx, ids[1], chat.ID, ids[3])
	assert.ErrorIs(t, err, util.ErrAuthorization)

	chat, err = e.chats.ApproveJoinRequest(ctx, ids[0], chat.ID, ids[3])
	require.NoError(t, err)
	assert.Contains(t, chat.MemberIDs, ids[3])
	assert.Empty(t, chat.PendingJoinRequestIDs)

	_, err = e.chats.ApproveJoinRequest(ctx, ids[0], chat.ID, ids[3])
	assert.ErrorIs(t, err, util.ErrNotFound)

	_, err = e.chats.RequestToJoin(ctx, ids[4], chat.ID)
	require.NoError(t, err)
	chat, err = e.chats.DeclineJoinRequest(ctx, ids[0], chat.ID, ids[4])
	require.NoError(t, err)
	assert.Empty(t, chat.PendingJoinRequestIDs)
	assert.NotContains(t, chat.MemberIDs, ids[4])
	_, err = e.chats.DeclineJoinRequest(ctx, ids[0], chat.ID, ids[4])
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestListChatsForUserOrdering(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B", "C", "D")
	ctx := context.Background()

	ab, err := e.chats.GetOrCreateDirectChat(ctx, ids[0], ids[1])
	require.NoError(t, err)
	ac, err := e.chats.GetOrCreateDirectChat(ctx, ids[0], ids[2])
	require.NoError(t, err)
	group, err := e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], ids[2]})
	require.NoError(t, err)

	base := time.Now().Add(time.Hour)
	require.NoError(t, e.chats.RecordLatestMessage(ctx, ab.ID, "m1", base.Add(2*time.Minute)))
	require.NoError(t, e.chats.RecordLatestMessage(ctx, group.ID, "m2", base.Add(time.Minute)))
	require.NoError(t, e.chats.RecordLatestMessage(ctx, ac.ID, "m3", base.Add(3*time.Minute)))

	chats, err := e.chats.ListChatsForUser(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, []string{ac.ID, ab.ID, group.ID}, []string{chats[0].ID, chats[1].ID, chats[2].ID})

	chats, err = e.chats.ListChatsForUser(ctx, ids[3])
	require.NoError(t, err)
	assert.Empty(t, chats)

	assert.ErrorIs(t, e.chats.RecordLatestMessage(ctx, "missing", "m4", time.Time{}), util.ErrNotFound)
	assert.ErrorIs(t, e.chats.RecordLatestMessage(ctx, ab.ID, "", time.Time{}), util.ErrValidation)
}

func TestSortByActivityTieBreaksOnID(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	chats := []model.Chat{
		{UUIDBase: model.UUIDBase{ID: "b", UpdatedAt: at}},
		{UUIDBase: model.UUIDBase{ID: "a", UpdatedAt: at}},
		{UUIDBase: model.UUIDBase{ID: "c", UpdatedAt: at.Add(time.Second)}},
	}
	model.SortByActivity(chats)
	assert.Equal(t, "c", chats[0].ID)
	assert.Equal(t, "a", chats[1].ID)
	assert.Equal(t, "b", chats[2].ID)
}

func TestNoOpMutationsKeepActivityOrder(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B", "C", "D", "E")
	ctx := context.Background()

	group, err := e.chats.CreateGroupChat(ctx, ids[0], "Team", []uint{ids[1], ids[2]})
	require.NoError(t, err)
	direct, err := e.chats.GetOrCreateDirectChat(ctx, ids[0], ids[1])
	require.NoError(t, err)
	require.NoError(t, e.chats.RecordLatestMessage(ctx, direct.ID, "m1", time.Time{}))

	firstID := func() string {
		chats, err := e.chats.ListChatsForUser(ctx, ids[0])
		require.NoError(t, err)
		require.Len(t, chats, 2)
		return chats[0].ID
	}
	require.Equal(t, direct.ID, firstID())

	before, err := e.chats.GetChat(ctx, group.ID)
	require.NoError(t, err)

	// 申请入群、重复添加成员、移除非成员都不算会话活跃
	_, err = e.chats.RequestToJoin(ctx, ids[4], group.ID)
	require.NoError(t, err)
	_, err = e.chats.RequestToJoin(ctx, ids[4], group.ID)
	require.NoError(t, err)
	_, err = e.chats.AddMember(ctx, ids[0], group.ID, ids[1])
	require.NoError(t, err)
	_, err = e.chats.RemoveMember(ctx, ids[0], group.ID, ids[3])
	require.NoError(t, err)
	_, err = e.chats.DeclineJoinRequest(ctx, ids[0], group.ID, ids[4])
	require.NoError(t, err)

	after, err := e.chats.GetChat(ctx, group.ID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt), "updated_at moved on a no-op")
	assert.Equal(t, direct.ID, firstID())

	time.Sleep(5 * time.Millisecond)
	changed, err := e.chats.AddMember(ctx, ids[0], group.ID, ids[3])
	require.NoError(t, err)
	assert.True(t, changed.UpdatedAt.After(before.UpdatedAt))
	assert.Equal(t, group.ID, firstID())
}
