package model

import "time"

// User 由外部注册服务创建，这里只关心名字、邮箱和屏蔽列表
type User struct {
	BaseModel
	Name   string `gorm:"size:100;not null" json:"name"`
	Email  string `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Avatar string `gorm:"size:255" json:"avatar"`

	// 搜索结果中标记是否已是好友
	IsFriend bool `gorm:"-" json:"isFriend"`
}

func (User) TableName() string {
	return "users"
}

// UserBlock is one directional edge blocker -> blocked.
type UserBlock struct {
	BlockerID uint      `gorm:"primaryKey;autoIncrement:false" json:"blockerId"`
	BlockedID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (UserBlock) TableName() string {
	return "user_blocks"
}
