package repository

import (
	"chat_relation_backend/internal/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FriendshipRepository struct {
	DB *gorm.DB
}

func NewFriendshipRepository(db *gorm.DB) *FriendshipRepository {
	return &FriendshipRepository{DB: db}
}

func (r *FriendshipRepository) WithTx(tx *gorm.DB) *FriendshipRepository {
	return &FriendshipRepository{DB: tx}
}

// CreateFriendship 双向写入，已存在的方向忽略
func (r *FriendshipRepository) CreateFriendship(ctx context.Context, userID, friendID uint) error {
	rows := []model.Friendship{
		{UserID: userID, FriendID: friendID},
		{UserID: friendID, FriendID: userID},
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *FriendshipRepository) DeleteFriendship(ctx context.Context, userID, friendID uint) error {
	return r.DB.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", userID, friendID, friendID, userID).
		Delete(&model.Friendship{}).Error
}

func (r *FriendshipRepository) IsFriend(ctx context.Context, userID, friendID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&count).Error
	return count > 0, err
}

// GetFriendIDs 只获取好友的 ID 列表
func (r *FriendshipRepository) GetFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Friendship{}).
		Where("user_id = ?", userID).
		Order("created_at ASC, friend_id ASC").
		Pluck("friend_id", &ids).Error
	return ids, err
}

func (r *FriendshipRepository) CreateRequest(ctx context.Context, req *model.FriendRequest) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(req).Error
}

func (r *FriendshipRepository) GetRequest(ctx context.Context, id string) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := r.DB.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		First(&req, "id = ?", id).Error
	return &req, err
}

// PendingBetween returns the pending request between two users in either
// direction, or gorm.ErrRecordNotFound.
func (r *FriendshipRepository) PendingBetween(ctx context.Context, a, b uint) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := r.DB.WithContext(ctx).
		Where("pending_key = ?", model.PairKey(a, b)).
		First(&req).Error
	return &req, err
}

// ResolveRequest 仅当申请仍为 pending 时才更新状态，返回是否命中
func (r *FriendshipRepository) ResolveRequest(ctx context.Context, id string, status model.FriendRequestStatus) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", id, model.FriendRequestPending).
		Updates(map[string]interface{}{
			"status":      status,
			"pending_key": gorm.Expr("NULL"),
		})
	return res.RowsAffected > 0, res.Error
}

// ListRequests 返回用户作为发送方或接收方的申请，最新的在前；status 为空表示不过滤
func (r *FriendshipRepository) ListRequests(ctx context.Context, userID uint, status model.FriendRequestStatus) ([]model.FriendRequest, error) {
	reqs := []model.FriendRequest{}
	db := r.DB.WithContext(ctx).Model(&model.FriendRequest{}).
		Preload("Sender").
		Preload("Receiver").
		Where("(sender_id = ? OR receiver_id = ?)", userID, userID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("created_at DESC, id ASC").Find(&reqs).Error
	return reqs, err
}
