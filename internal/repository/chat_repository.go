package repository

import (
	"chat_relation_backend/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatRepository struct {
	DB *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{DB: db}
}

func (r *ChatRepository) WithTx(tx *gorm.DB) *ChatRepository {
	return &ChatRepository{DB: tx}
}

// preloaded 按成员加入顺序、屏蔽与申请的创建顺序加载关联
func (r *ChatRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, user_id ASC")
		}).
		Preload("Members.User").
		Preload("BlockedUsers", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, user_id ASC")
		}).
		Preload("JoinRequests", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, user_id ASC")
		})
}

// Create 写入会话及初始成员，成员顺序即 memberIDs 的顺序
func (r *ChatRepository) Create(ctx context.Context, chat *model.Chat, memberIDs []uint) error {
	if err := r.DB.WithContext(ctx).Omit(clause.Associations).Create(chat).Error; err != nil {
		return err
	}
	members := make([]model.ChatMember, 0, len(memberIDs))
	for i, id := range memberIDs {
		members = append(members, model.ChatMember{ChatID: chat.ID, UserID: id, Position: i + 1})
	}
	if len(members) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(&members).Error
}

func (r *ChatRepository) FindByID(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	if err := r.preloaded(ctx).First(&chat, "id = ?", id).Error; err != nil {
		return nil, err
	}
	chat.Flatten()
	return &chat, nil
}

func (r *ChatRepository) FindDirect(ctx context.Context, a, b uint) (*model.Chat, error) {
	var chat model.Chat
	if err := r.preloaded(ctx).First(&chat, "direct_key = ?", model.PairKey(a, b)).Error; err != nil {
		return nil, err
	}
	chat.Flatten()
	return &chat, nil
}

// ListForUser 返回用户所在的全部会话，排序由调用方负责
func (r *ChatRepository) ListForUser(ctx context.Context, userID uint) ([]model.Chat, error) {
	chats := []model.Chat{}
	err := r.preloaded(ctx).
		Where("id IN (?)", r.DB.Model(&model.ChatMember{}).Select("chat_id").Where("user_id = ?", userID)).
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	for i := range chats {
		chats[i].Flatten()
	}
	return chats, nil
}

// Lock is the first write of a membership transaction. It takes the chat
// row lock (MySQL) or the database write lock (SQLite) without changing
// updated_at, so concurrent writers on one chat serialize here.
func (r *ChatRepository) Lock(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&model.Chat{}).
		Where("id = ?", id).
		UpdateColumn("lock_version", gorm.Expr("lock_version + 1")).Error
}

// Touch bumps updated_at after a real change of name or membership.
func (r *ChatRepository) Touch(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&model.Chat{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", time.Now()).Error
}

func (r *ChatRepository) Rename(ctx context.Context, id, name string) error {
	return r.DB.WithContext(ctx).Model(&model.Chat{}).
		Where("id = ?", id).
		Update("chat_name", name).Error
}

func (r *ChatRepository) SetAdmin(ctx context.Context, id string, adminID *uint) error {
	return r.DB.WithContext(ctx).Model(&model.Chat{}).
		Where("id = ?", id).
		Update("group_admin_id", adminID).Error
}

func (r *ChatRepository) SetLatestMessage(ctx context.Context, id, ref string, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Chat{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"latest_message_id": ref,
			"latest_message_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// AddMember appends userID after the current last member. It reports false
// when the user was already a member.
func (r *ChatRepository) AddMember(ctx context.Context, chatID string, userID uint) (bool, error) {
	var maxPos int
	err := r.DB.WithContext(ctx).Model(&model.ChatMember{}).
		Where("chat_id = ?", chatID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&maxPos).Error
	if err != nil {
		return false, err
	}
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ChatMember{ChatID: chatID, UserID: userID, Position: maxPos + 1})
	return res.RowsAffected > 0, res.Error
}

func (r *ChatRepository) RemoveMember(ctx context.Context, chatID string, userID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&model.ChatMember{})
	return res.RowsAffected > 0, res.Error
}

func (r *ChatRepository) AddJoinRequest(ctx context.Context, chatID string, userID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ChatJoinRequest{ChatID: chatID, UserID: userID})
	return res.RowsAffected > 0, res.Error
}

func (r *ChatRepository) RemoveJoinRequest(ctx context.Context, chatID string, userID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&model.ChatJoinRequest{})
	return res.RowsAffected > 0, res.Error
}

func (r *ChatRepository) AddChatBlock(ctx context.Context, chatID string, userID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ChatBlockedUser{ChatID: chatID, UserID: userID})
	return res.RowsAffected > 0, res.Error
}

func (r *ChatRepository) RemoveChatBlock(ctx context.Context, chatID string, userID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&model.ChatBlockedUser{})
	return res.RowsAffected > 0, res.Error
}
