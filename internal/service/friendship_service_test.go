package service

import (
	"chat_relation_backend/internal/model"
	"chat_relation_backend/internal/testutil"
	"chat_relation_backend/internal/util"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequestConflicts(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B")
	ctx := context.Background()

	_, err := e.graph.SendRequest(ctx, ids[0], ids[0], "")
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.graph.SendRequest(ctx, ids[0], 9999, "")
	assert.ErrorIs(t, err, util.ErrNotFound)

	req, err := e.graph.SendRequest(ctx, ids[0], ids[1], " hi ")
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestPending, req.Status)
	assert.Equal(t, "hi", req.Message)

	_, err = e.graph.SendRequest(ctx, ids[0], ids[1], "")
	assert.ErrorIs(t, err, util.ErrConflict, "same direction while pending")
	_, err = e.graph.SendRequest(ctx, ids[1], ids[0], "")
	assert.ErrorIs(t, err, util.ErrConflict, "reverse direction while pending")

	_, err = e.graph.AcceptRequest(ctx, ids[1], req.ID)
	require.NoError(t, err)
	_, err = e.graph.SendRequest(ctx, ids[1], ids[0], "")
	assert.ErrorIs(t, err, util.ErrConflict, "already friends")
}

func TestAcceptRequest(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B")
	ctx := context.Background()

	req, err := e.graph.SendRequest(ctx, ids[0], ids[1], "")
	require.NoError(t, err)

	_, err = e.graph.AcceptRequest(ctx, ids[0], req.ID)
	assert.ErrorIs(t, err, util.ErrAuthorization, "sender cannot accept")

	_, err = e.graph.AcceptRequest(ctx, ids[1], "missing")
	assert.ErrorIs(t, err, util.ErrNotFound)

	accepted, err := e.graph.AcceptRequest(ctx, ids[1], req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestAccepted, accepted.Status)

	for _, pair := range [][2]uint{{ids[0], ids[1]}, {ids[1], ids[0]}} {
		ok, err := e.graph.AreFriends(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, ok)
	}

	_, err = e.graph.AcceptRequest(ctx, ids[1], req.ID)
	assert.ErrorIs(t, err, util.ErrConflict)
	_, err = e.graph.RejectRequest(ctx, ids[1], req.ID)
	assert.ErrorIs(t, err, util.ErrConflict)

	friends, err := e.graph.ListFriends(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, ids[1], friends[0].ID)
	assert.True(t, friends[0].IsFriend)
}

func TestRejectRequestKeepsRecord(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B")
	ctx := context.Background()

	req, err := e.graph.SendRequest(ctx, ids[0], ids[1], "")
	require.NoError(t, err)

	rejected, err := e.graph.RejectRequest(ctx, ids[1], req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestRejected, rejected.Status)

	ok, err := e.graph.AreFriends(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := e.graph.ListRequests(ctx, ids[0], "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.FriendRequestRejected, all[0].Status)

	pending, err := e.graph.ListPendingRequests(ctx, ids[0])
	require.NoError(t, err)
	assert.Empty(t, pending)

	// 拒绝后可以重新申请
	_, err = e.graph.SendRequest(ctx, ids[0], ids[1], "")
	assert.NoError(t, err)

	_, err = e.graph.ListRequests(ctx, ids[0], "archived")
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestConcurrentAcceptRejectSingleWinner(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B")
	ctx := context.Background()

	req, err := e.graph.SendRequest(ctx, ids[0], ids[1], "")
	require.NoError(t, err)

	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = e.graph.AcceptRequest(ctx, ids[1], req.ID)
			} else {
				_, err = e.graph.RejectRequest(ctx, ids[1], req.ID)
			}
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, util.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(11), conflicts)

	var edges int64
	require.NoError(t, e.db.Model(&model.Friendship{}).Count(&edges).Error)
	final, err := e.graph.Friends.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	if final.Status == model.FriendRequestAccepted {
		assert.Equal(t, int64(2), edges)
	} else {
		assert.Equal(t, int64(0), edges)
	}
}

func TestRemoveFriendIsIdempotent(t *testing.T) {
	e := newEngine(t)
	ids := testutil.SeedUsers(t, e.db, "A", "B")
	ctx := context.Background()

	req, err := e.graph.SendRequest(ctx, ids[0], ids[1], "")
	require.NoError(t, err)
	_, err = e.graph.AcceptRequest(ctx, ids[1], req.ID)
	require.NoError(t, err)

	require.NoError(t, e.graph.RemoveFriend(ctx, ids[1], ids[0]))
	require.NoError(t, e.graph.RemoveFriend(ctx, ids[1], ids[0]))

	for _, pair := range [][2]uint{{ids[0], ids[1]}, {ids[1], ids[0]}} {
		ok, err := e.graph.AreFriends(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.False(t, ok)
	}
}
