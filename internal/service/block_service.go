package service

import (
	"chat_relation_backend/internal/model"
	"chat_relation_backend/internal/repository"
	"chat_relation_backend/internal/util"
	"context"
	"slices"

	"gorm.io/gorm"
)

// BlockStore 用户级屏蔽与会话级屏蔽，两者是独立的关系
type BlockStore struct {
	DB     *gorm.DB
	Blocks *repository.BlockRepository
	Users  *repository.UserRepository
	Chats  *repository.ChatRepository
}

func NewBlockStore(db *gorm.DB, blocks *repository.BlockRepository, users *repository.UserRepository, chats *repository.ChatRepository) *BlockStore {
	return &BlockStore{DB: db, Blocks: blocks, Users: users, Chats: chats}
}

func (s *BlockStore) BlockUser(ctx context.Context, actorID, targetID uint) (err error) {
	const op = "block.user"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	if actorID == targetID {
		return util.Validation("cannot block yourself")
	}
	if err := requireUsers(ctx, s.Users, op, actorID, targetID); err != nil {
		return err
	}

	created, err := s.Blocks.Insert(ctx, actorID, targetID)
	if err != nil {
		return util.ServerError(op, err)
	}
	if !created {
		return util.Conflict("already blocked")
	}
	return nil
}

// UnblockUser 未屏蔽时返回 Conflict，重复调用结果一致
func (s *BlockStore) UnblockUser(ctx context.Context, actorID, targetID uint) (err error) {
	const op = "block.unblock_user"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	if actorID == targetID {
		return util.Validation("cannot unblock yourself")
	}
	removed, err := s.Blocks.Delete(ctx, actorID, targetID)
	if err != nil {
		return util.ServerError(op, err)
	}
	if !removed {
		return util.Conflict("not blocked")
	}
	return nil
}

// IsBlocked reports whether a has blocked b. It does not look at b's list.
func (s *BlockStore) IsBlocked(ctx context.Context, a, b uint) (bool, error) {
	ok, err := s.Blocks.Exists(ctx, a, b)
	return ok, util.ServerError("block.is_blocked", err)
}

func (s *BlockStore) BlockedIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids, err := s.Blocks.BlockedIDs(ctx, userID)
	return ids, util.ServerError("block.ids", err)
}

func (s *BlockStore) ListBlocked(ctx context.Context, userID uint) (users []model.User, err error) {
	const op = "block.list"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	ids, err := s.Blocks.BlockedIDs(ctx, userID)
	if err != nil {
		return nil, util.ServerError(op, err)
	}
	users, err = s.Users.FindByIDs(ctx, ids)
	return users, util.ServerError(op, err)
}

// BlockInChat excludes userID from a group chat. The user leaves the member
// list and the pending join requests in the same transaction.
func (s *BlockStore) BlockInChat(ctx context.Context, actorID uint, chatID string, userID uint) (chat *model.Chat, err error) {
	const op = "block.in_chat"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	if actorID == userID {
		return nil, util.Validation("cannot block yourself in a chat")
	}
	if err := requireUsers(ctx, s.Users, op, userID); err != nil {
		return nil, err
	}

	return s.mutateChat(ctx, op, actorID, chatID, func(chats *repository.ChatRepository, chat *model.Chat) error {
		created, err := chats.AddChatBlock(ctx, chat.ID, userID)
		if err != nil {
			return util.ServerError(op, err)
		}
		if !created {
			return util.Conflict("already blocked in this chat")
		}
		if slices.Contains(chat.MemberIDs, userID) {
			if err := detachMember(ctx, chats, chat, userID); err != nil {
				return util.ServerError(op, err)
			}
		}
		_, err = chats.RemoveJoinRequest(ctx, chat.ID, userID)
		return util.ServerError(op, err)
	})
}

func (s *BlockStore) UnblockInChat(ctx context.Context, actorID uint, chatID string, userID uint) (chat *model.Chat, err error) {
	const op = "block.unblock_in_chat"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	return s.mutateChat(ctx, op, actorID, chatID, func(chats *repository.ChatRepository, chat *model.Chat) error {
		removed, err := chats.RemoveChatBlock(ctx, chat.ID, userID)
		if err != nil {
			return util.ServerError(op, err)
		}
		if !removed {
			return util.Conflict("not blocked in this chat")
		}
		return nil
	})
}

// mutateChat 会话级屏蔽只对群聊有效，且只有群管理员可以操作
func (s *BlockStore) mutateChat(ctx context.Context, op string, actorID uint, chatID string, fn func(chats *repository.ChatRepository, chat *model.Chat) error) (*model.Chat, error) {
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
		if !chat.IsGroupChat {
			return util.Conflict("chat-scoped blocks apply to group chats only")
		}
		if !chat.IsAdmin(actorID) {
			return util.Unauthorized("only the group admin can manage chat blocks")
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
