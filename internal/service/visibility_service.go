package service

import (
	"chat_relation_backend/internal/config"
	"chat_relation_backend/internal/model"
	"chat_relation_backend/internal/util"
	"context"
	"slices"
	"strings"
	"sync/atomic"
)

// VisibilityFilter 读取侧组合：按屏蔽关系过滤会话列表和用户搜索结果
//
// Blocks are directional here: a chat is hidden from the blocker, not from
// the blocked user.
type VisibilityFilter struct {
	Chats   *ChatRegistry
	Blocks  *BlockStore
	Friends *RelationshipGraph

	policy atomic.Pointer[config.VisibilityConfig]
}

func NewVisibilityFilter(chats *ChatRegistry, blocks *BlockStore, friends *RelationshipGraph, policy config.VisibilityConfig) *VisibilityFilter {
	f := &VisibilityFilter{Chats: chats, Blocks: blocks, Friends: friends}
	f.SetPolicy(policy)
	return f
}

func (f *VisibilityFilter) SetPolicy(p config.VisibilityConfig) {
	f.policy.Store(&p)
}

func (f *VisibilityFilter) Policy() config.VisibilityConfig {
	return *f.policy.Load()
}

func (f *VisibilityFilter) VisibleChatsFor(ctx context.Context, userID uint) (visible []model.Chat, err error) {
	const op = "visibility.chats"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	chats, err := f.Chats.ListChatsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	blockedIDs, err := f.Blocks.BlockedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	blocked := make(map[uint]bool, len(blockedIDs))
	for _, id := range blockedIDs {
		blocked[id] = true
	}

	hideGroups := f.Policy().HideGroupsWithBlockedMembers
	visible = make([]model.Chat, 0, len(chats))
	for _, chat := range chats {
		if slices.Contains(chat.ChatBlockedUserIDs, userID) {
			continue
		}
		if !chat.IsGroupChat {
			if other, ok := chat.Counterpart(userID); ok && blocked[other] {
				continue
			}
		} else if hideGroups && slices.ContainsFunc(chat.MemberIDs, func(id uint) bool { return blocked[id] }) {
			continue
		}
		visible = append(visible, chat)
	}
	return visible, nil
}

// VisibleUsersFor searches users by name or email, leaving out the actor and
// everyone the actor has blocked. Users who blocked the actor still show up.
func (f *VisibilityFilter) VisibleUsersFor(ctx context.Context, userID uint, query string) (users []model.User, err error) {
	const op = "visibility.users"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	blockedIDs, err := f.Blocks.BlockedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	exclude := append([]uint{userID}, blockedIDs...)

	limit := f.Policy().SearchLimit
	if limit <= 0 {
		limit = util.DefaultSearchLimit
	}
	if limit > util.MaxSearchLimit {
		limit = util.MaxSearchLimit
	}

	users, err = f.Blocks.Users.Search(ctx, strings.TrimSpace(query), exclude, limit)
	if err != nil {
		return nil, util.ServerError(op, err)
	}

	friendIDs, err := f.Friends.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].IsFriend = slices.Contains(friendIDs, users[i].ID)
	}
	return users, nil
}
