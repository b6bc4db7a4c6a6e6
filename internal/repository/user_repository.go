package repository

import (
	"chat_relation_backend/internal/model"
	"context"
	"strings"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{DB: tx}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	return &user, err
}

// FindByIDs keeps the order of ids and skips unknown users.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	var users []model.User
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	ordered := make([]model.User, 0, len(users))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
		}
	}
	return ordered, nil
}

// MissingIDs returns the ids that do not belong to any user.
func (r *UserRepository) MissingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []uint
	if err := r.DB.WithContext(ctx).Model(&model.User{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	seen := make(map[uint]bool, len(found))
	for _, id := range found {
		seen[id] = true
	}
	var missing []uint
	for _, id := range ids {
		if !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	return missing, nil
}

// '!' 作为 LIKE 转义符，mysql 与 sqlite 写法一致
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Search 按昵称或邮箱模糊匹配，排除 excludeIDs
func (r *UserRepository) Search(ctx context.Context, query string, excludeIDs []uint, limit int) ([]model.User, error) {
	var users []model.User
	db := r.DB.WithContext(ctx).Model(&model.User{})
	if query != "" {
		searchTerm := "%" + likeEscaper.Replace(query) + "%"
		db = db.Where("name LIKE ? ESCAPE '!' OR email LIKE ? ESCAPE '!'", searchTerm, searchTerm)
	}
	if len(excludeIDs) > 0 {
		db = db.Where("id NOT IN ?", excludeIDs)
	}
	err := db.Order("id ASC").Limit(limit).Find(&users).Error
	return users, err
}
