package repository

import (
	"chat_relation_backend/internal/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlockRepository 用户级屏蔽关系（有向）
type BlockRepository struct {
	DB *gorm.DB
}

func NewBlockRepository(db *gorm.DB) *BlockRepository {
	return &BlockRepository{DB: db}
}

func (r *BlockRepository) WithTx(tx *gorm.DB) *BlockRepository {
	return &BlockRepository{DB: tx}
}

// Insert reports false when the edge already existed.
func (r *BlockRepository) Insert(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserBlock{BlockerID: blockerID, BlockedID: blockedID})
	return res.RowsAffected > 0, res.Error
}

// Delete reports false when there was nothing to remove.
func (r *BlockRepository) Delete(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&model.UserBlock{})
	return res.RowsAffected > 0, res.Error
}

func (r *BlockRepository) Exists(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.UserBlock{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	return count > 0, err
}

func (r *BlockRepository) BlockedIDs(ctx context.Context, blockerID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.UserBlock{}).
		Where("blocker_id = ?", blockerID).
		Order("created_at ASC, blocked_id ASC").
		Pluck("blocked_id", &ids).Error
	return ids, err
}

// AnyBetween 判断 userID 与 others 中任一用户之间是否存在任一方向的屏蔽
func (r *BlockRepository) AnyBetween(ctx context.Context, userID uint, others []uint) (bool, error) {
	if len(others) == 0 {
		return false, nil
	}
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id IN ?) OR (blocked_id = ? AND blocker_id IN ?)", userID, others, userID, others).
		Count(&count).Error
	return count > 0, err
}
