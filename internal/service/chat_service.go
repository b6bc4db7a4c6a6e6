package service

import (
	"chat_relation_backend/internal/config"
	"chat_relation_backend/internal/model"
	"chat_relation_backend/internal/repository"
	"chat_relation_backend/internal/util"
	"chat_relation_backend/pkg/lock"
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// ChatRegistry 管理私聊与群聊实体及成员变更
type ChatRegistry struct {
	DB     *gorm.DB
	Chats  *repository.ChatRepository
	Users  *repository.UserRepository
	Blocks *repository.BlockRepository
	Locker lock.Locker

	policy atomic.Pointer[config.ChatConfig]
	direct singleflight.Group
}

func NewChatRegistry(db *gorm.DB, chats *repository.ChatRepository, users *repository.UserRepository,
	blocks *repository.BlockRepository, locker lock.Locker, policy config.ChatConfig) *ChatRegistry {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	s := &ChatRegistry{
		DB:     db,
		Chats:  chats,
		Users:  users,
		Blocks: blocks,
		Locker: locker,
	}
	s.SetPolicy(policy)
	return s
}

// SetPolicy swaps the chat policy; used on config reload.
func (s *ChatRegistry) SetPolicy(p config.ChatConfig) {
	s.policy.Store(&p)
}

func (s *ChatRegistry) Policy() config.ChatConfig {
	return *s.policy.Load()
}

func (s *ChatRegistry) GetOrCreateDirectChat(ctx context.Context, actorID, otherID uint) (chat *model.Chat, err error) {
	ctx, end := startOp(ctx, "chat.direct")
	defer end(&err)

	if actorID == otherID {
		return nil, util.Validation("cannot start a direct chat with yourself")
	}
	if err := s.requireUsers(ctx, actorID, otherID); err != nil {
		return nil, err
	}

	key := model.PairKey(actorID, otherID)
	v, err, _ := s.direct.Do(key, func() (interface{}, error) {
		return s.getOrCreateDirect(ctx, actorID, otherID)
	})
	if err != nil {
		return nil, err
	}
	// singleflight 的结果在调用方之间共享，返回副本
	shared := *v.(*model.Chat)
	return &shared, nil
}

func (s *ChatRegistry) getOrCreateDirect(ctx context.Context, actorID, otherID uint) (*model.Chat, error) {
	const op = "chat.direct"

	chat, err := s.Chats.FindDirect(ctx, actorID, otherID)
	if err == nil {
		return chat, nil
	}
	if !isNotFound(err) {
		return nil, util.ServerError(op, err)
	}

	// 多实例部署时由 Redis 锁串行化同一对用户的创建，唯一索引兜底
	release, err := s.Locker.Lock(ctx, "chat:direct:"+model.PairKey(actorID, otherID))
	if err != nil {
		return nil, util.ServerError(op, err)
	}
	defer release()

	chat, err = s.Chats.FindDirect(ctx, actorID, otherID)
	if err == nil {
		return chat, nil
	}
	if !isNotFound(err) {
		return nil, util.ServerError(op, err)
	}

	key := model.PairKey(actorID, otherID)
	created := &model.Chat{ChatName: model.DirectChatName, DirectKey: &key}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.Chats.WithTx(tx).Create(ctx, created, []uint{actorID, otherID})
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 并发创建失败方读取胜出方的会话
		chat, err = s.Chats.FindDirect(ctx, actorID, otherID)
		return chat, util.ServerError(op, err)
	}
	if err != nil {
		return nil, util.ServerError(op, err)
	}

	chat, err = s.Chats.FindByID(ctx, created.ID)
	return chat, util.ServerError(op, err)
}

func (s *ChatRegistry) CreateGroupChat(ctx context.Context, actorID uint, name string, memberIDs []uint) (chat *model.Chat, err error) {
	const op = "chat.create_group"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, util.Validation("group name is required")
	}

	members := []uint{actorID}
	seen := map[uint]bool{actorID: true}
	for _, id := range memberIDs {
		if id == 0 {
			return nil, util.Validation("invalid member id 0")
		}
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	if len(members) < 3 {
		return nil, util.Validation("a group chat needs at least 3 members including the creator, got %d", len(members))
	}
	if err := s.requireUsers(ctx, members...); err != nil {
		return nil, err
	}

	admin := actorID
	created := &model.Chat{IsGroupChat: true, ChatName: name, GroupAdminID: &admin}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.Chats.WithTx(tx).Create(ctx, created, members)
	})
	if err != nil {
		return nil, util.ServerError(op, err)
	}

	chat, err = s.Chats.FindByID(ctx, created.ID)
	return chat, util.ServerError(op, err)
}

func (s *ChatRegistry) RenameChat(ctx context.Context, actorID uint, chatID, newName string) (chat *model.Chat, err error) {
	const op = "chat.rename"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, util.Validation("chat name is required")
	}

	policy := s.Policy()
	return s.mutate(ctx, op, chatID, func(chats *repository.ChatRepository, chat *model.Chat) error {
		if !chat.HasMember(actorID) {
			return util.Unauthorized("only members can rename the chat")
		}
		if policy.RenameRequiresAdmin && chat.IsGroupChat && !chat.IsAdmin(actorID) {
			return util.Unauthorized("only the group admin can rename the chat")
		}
		return util.ServerError(op, chats.Rename(ctx, chat.ID, newName))
	})
}

func (s *ChatRegistry) AddMember(ctx context.Context, actorID uint, chatID string, userID uint) (chat *model.Chat, err error) {
	const op = "chat.add_member"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	if err := s.requireUsers(ctx, userID); err != nil {
		return nil, err
	}

	policy := s.Policy()
	return s.mutate(ctx, op, chatID, func(chats *repository.ChatRepository, chat *model.Chat) error {
		if !chat.IsGroupChat {
			return util.Conflict("members of a direct chat cannot be changed")
		}
		if !chat.HasMember(actorID) {
			return util.Unauthorized("only members can add members")
		}
		if policy.MembershipRequiresAdmin && !chat.IsAdmin(actorID) {
			return util.Unauthorized("only the group admin can add members")
		}
		if chat.HasMember(userID) {
			return nil
		}
		return s.admit(ctx, op, chats, chat, userID)
	})
}

// admit 在同一事务内校验屏蔽规则并加入成员，同时清除该用户的入群申请
func (s *ChatRegistry) admit(ctx context.Context, op string, chats *repository.ChatRepository, chat *model.Chat, userID uint) error {
	if slices.Contains(chat.ChatBlockedUserIDs, userID) {
		return util.Conflict("user %d is blocked in this chat", userID)
	}
	blocked, err := s.Blocks.WithTx(chats.DB).AnyBetween(ctx, userID, chat.MemberIDs)
	if err != nil {
		return util.ServerError(op, err)
	}
	if blocked {
		return util.Conflict("user %d has a block relation with a member of this chat", userID)
	}
	added, err := chats.AddMember(ctx, chat.ID, userID)
	if err != nil {
		return util.ServerError(op, err)
	}
	if added {
		if err := chats.Touch(ctx, chat.ID); err != nil {
			return util.ServerError(op, err)
		}
	}
	_, err = chats.RemoveJoinRequest(ctx, chat.ID, userID)
	return util.ServerError(op, err)
}

func (s *ChatRegistry) RemoveMember(ctx context.Context, actorID uint, chatID string, userID uint) (chat *model.Chat, err error) {
	const op = "chat.remove_member"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	policy := s.Policy()
	return s.mutate(ctx, op, chatID, func(chats *repository.ChatRepository, chat *model.Chat) error {
		if !chat.IsGroupChat {
			return util.Conflict("members of a direct chat cannot be changed")
		}
		// 退出群聊不需要管理员权限
		if actorID != userID && !chat.HasMember(actorID) {
			return util.Unauthorized("only members can remove members")
		}
		if policy.MembershipRequiresAdmin && actorID != userID && !chat.IsAdmin(actorID) {
			return util.Unauthorized("only the group admin can remove members")
		}
		if !chat.HasMember(userID) {
			return nil
		}
		return util.ServerError(op, detachMember(ctx, chats, chat, userID))
	})
}

// detachMember removes userID from chat. When the admin leaves, the earliest
// remaining member becomes admin; an empty group keeps no admin.
func detachMember(ctx context.Context, chats *repository.ChatRepository, chat *model.Chat, userID uint) error {
	removed, err := chats.RemoveMember(ctx, chat.ID, userID)
	if err != nil || !removed {
		return err
	}
	if err := chats.Touch(ctx, chat.ID); err != nil {
		return err
	}
	if !chat.IsAdmin(userID) {
		return nil
	}
	var next *uint
	for _, id := range chat.MemberIDs {
		if id != userID {
			next = &id
			break
		}
	}
	return chats.SetAdmin(ctx, chat.ID, next)
}

func (s *ChatRegistry) RequestToJoin(ctx context.Context, actorID uint, chatID string) (chat *model.Chat, err error) {
	const op = "chat.request_join"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	return s.mutate(ctx, op, chatID, func(chats *repository.ChatRepository, chat *model.Chat) error {
		if !chat.IsGroupChat {
			return util.Conflict("cannot request to join a direct chat")
		}
		if chat.HasMember(actorID) {
			return nil
		}
		if slices.Contains(chat.ChatBlockedUserIDs, actorID) {
			return util.Conflict("you are blocked in this chat")
		}
		_, err := chats.AddJoinRequest(ctx, chat.ID, actorID)
		return util.ServerError(op, err)
	})
}

func (s *ChatRegistry) ApproveJoinRequest(ctx context.Context, actorID uint, chatID string, userID uint) (chat *model.Chat, err error) {
	const op = "chat.approve_join"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	return s.mutate(ctx, op, chatID, func(chats *repository.ChatRepository, chat *model.Chat) error {
		if !chat.IsAdmin(actorID) {
			return util.Unauthorized("only the group admin can approve join requests")
		}
		if !slices.Contains(chat.PendingJoinRequestIDs, userID) {
			return util.NotFound("no pending join request from user %d", userID)
		}
		return s.admit(ctx, op, chats, chat, userID)
	})
}

func (s *ChatRegistry) DeclineJoinRequest(ctx context.Context, actorID uint, chatID string, userID uint) (chat *model.Chat, err error) {
	const op = "chat.decline_join"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	return s.mutate(ctx, op, chatID, func(chats *repository.ChatRepository, chat *model.Chat) error {
		if !chat.IsAdmin(actorID) {
			return util.Unauthorized("only the group admin can decline join requests")
		}
		removed, err := chats.RemoveJoinRequest(ctx, chat.ID, userID)
		if err != nil {
			return util.ServerError(op, err)
		}
		if !removed {
			return util.NotFound("no pending join request from user %d", userID)
		}
		return nil
	})
}

func (s *ChatRegistry) GetChat(ctx context.Context, chatID string) (chat *model.Chat, err error) {
	const op = "chat.get"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	chat, err = s.Chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, notFoundOr(op, err, "chat %s not found", chatID)
	}
	return chat, nil
}

// ListChatsForUser 按最近活跃时间倒序，时间相同按会话 ID 排序
func (s *ChatRegistry) ListChatsForUser(ctx context.Context, userID uint) (chats []model.Chat, err error) {
	const op = "chat.list"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	chats, err = s.Chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, util.ServerError(op, err)
	}
	model.SortByActivity(chats)
	return chats, nil
}

// RecordLatestMessage is called by the messaging service after it stores a
// message; at defaults to now.
func (s *ChatRegistry) RecordLatestMessage(ctx context.Context, chatID, messageRef string, at time.Time) (err error) {
	const op = "chat.record_latest_message"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	if messageRef == "" {
		return util.Validation("message reference is required")
	}
	if at.IsZero() {
		at = time.Now()
	}
	ok, err := s.Chats.SetLatestMessage(ctx, chatID, messageRef, at)
	if err != nil {
		return util.ServerError(op, err)
	}
	if !ok {
		return util.NotFound("chat %s not found", chatID)
	}
	return nil
}

// mutate runs fn inside a transaction that first locks the chat row, so
// writers on the same chat are serialized, then returns the fresh chat.
// updated_at only moves when fn changes the name or the members.
func (s *ChatRegistry) mutate(ctx context.Context, op, chatID string, fn func(chats *repository.ChatRepository, chat *model.Chat) error) (*model.Chat, error) {
	var result *model.Chat
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chats := s.Chats.WithTx(tx)
		if err := chats.Lock(ctx, chatID); err != nil {
			return util.ServerError(op, err)
		}
		chat, err := chats.FindByID(ctx, chatID)
		if err != nil {
			return notFoundOr(op, err, "chat %s not found", chatID)
		}
		if err := fn(chats, chat); err != nil {
			return err
		}
		result, err = chats.FindByID(ctx, chatID)
		return util.ServerError(op, err)
	})
	if err != nil {
		return nil, util.ServerError(op, err)
	}
	return result, nil
}

// requireUsers 校验所有用户存在
func (s *ChatRegistry) requireUsers(ctx context.Context, ids ...uint) error {
	return requireUsers(ctx, s.Users, "chat.require_users", ids...)
}

func requireUsers(ctx context.Context, users *repository.UserRepository, op string, ids ...uint) error {
	for _, id := range ids {
		if id == 0 {
			return util.Validation("invalid user id 0")
		}
	}
	missing, err := users.MissingIDs(ctx, ids)
	if err != nil {
		return util.ServerError(op, err)
	}
	if len(missing) > 0 {
		return util.NotFound("user %d not found", missing[0])
	}
	return nil
}
