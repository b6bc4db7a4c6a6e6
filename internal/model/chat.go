package model

import (
	"slices"
	"time"
)

const DirectChatName = "direct"

// Chat 会话（私聊 / 群聊）
//
// DirectKey is PairKey of the two members for direct chats and nil for groups;
// its unique index allows one direct chat per unordered pair.
type Chat struct {
	UUIDBase
	IsGroupChat     bool       `gorm:"not null;default:false" json:"isGroupChat"`
	ChatName        string     `gorm:"size:100;not null" json:"chatName"`
	GroupAdminID    *uint      `gorm:"index" json:"groupAdminId,omitempty"`
	DirectKey       *string    `gorm:"size:64;uniqueIndex" json:"-"`
	LatestMessageID *string    `gorm:"size:64" json:"latestMessageRef,omitempty"`
	LatestMessageAt *time.Time `json:"latestMessageAt,omitempty"`
	// LockVersion 只用于事务内抢占会话行锁，不参与活跃度排序
	LockVersion int64 `gorm:"not null;default:0" json:"-"`

	Members      []ChatMember      `gorm:"foreignKey:ChatID" json:"-"`
	BlockedUsers []ChatBlockedUser `gorm:"foreignKey:ChatID" json:"-"`
	JoinRequests []ChatJoinRequest `gorm:"foreignKey:ChatID" json:"-"`

	// 扁平化字段，由 Flatten 填充
	MemberIDs             []uint `gorm:"-" json:"memberIds"`
	ChatBlockedUserIDs    []uint `gorm:"-" json:"chatBlockedUserIds"`
	PendingJoinRequestIDs []uint `gorm:"-" json:"pendingJoinRequestIds"`
	Users                 []User `gorm:"-" json:"users"`
	GroupAdmin            *User  `gorm:"-" json:"groupAdmin,omitempty"`
}

func (Chat) TableName() string {
	return "chats"
}

// ChatMember keeps insertion order through Position.
type ChatMember struct {
	ChatID   string    `gorm:"primaryKey;type:varchar(36)" json:"chatId"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	Position int       `gorm:"not null" json:"position"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ChatMember) TableName() string {
	return "chat_members"
}

// ChatBlockedUser 会话级屏蔽，与用户级屏蔽列表相互独立
type ChatBlockedUser struct {
	ChatID    string    `gorm:"primaryKey;type:varchar(36)" json:"chatId"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (ChatBlockedUser) TableName() string {
	return "chat_blocked_users"
}

type ChatJoinRequest struct {
	ChatID    string    `gorm:"primaryKey;type:varchar(36)" json:"chatId"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (ChatJoinRequest) TableName() string {
	return "chat_join_requests"
}

// Flatten fills the id slices and member records from the loaded
// associations. Members are ordered by join position.
func (c *Chat) Flatten() {
	members := make([]ChatMember, len(c.Members))
	copy(members, c.Members)
	sortMembers(members)

	c.MemberIDs = make([]uint, 0, len(members))
	c.Users = make([]User, 0, len(members))
	c.GroupAdmin = nil
	for _, m := range members {
		c.MemberIDs = append(c.MemberIDs, m.UserID)
		if m.User == nil {
			continue
		}
		c.Users = append(c.Users, *m.User)
		if c.IsAdmin(m.UserID) {
			admin := *m.User
			c.GroupAdmin = &admin
		}
	}
	c.ChatBlockedUserIDs = make([]uint, 0, len(c.BlockedUsers))
	for _, b := range c.BlockedUsers {
		c.ChatBlockedUserIDs = append(c.ChatBlockedUserIDs, b.UserID)
	}
	c.PendingJoinRequestIDs = make([]uint, 0, len(c.JoinRequests))
	for _, r := range c.JoinRequests {
		c.PendingJoinRequestIDs = append(c.PendingJoinRequestIDs, r.UserID)
	}
}

func (c *Chat) HasMember(userID uint) bool {
	return slices.Contains(c.MemberIDs, userID)
}

func (c *Chat) IsAdmin(userID uint) bool {
	return c.GroupAdminID != nil && *c.GroupAdminID == userID
}

// Counterpart returns the other member of a direct chat.
func (c *Chat) Counterpart(userID uint) (uint, bool) {
	if c.IsGroupChat {
		return 0, false
	}
	for _, id := range c.MemberIDs {
		if id != userID {
			return id, true
		}
	}
	return 0, false
}

// ActivityAt is the timestamp used to order chat lists.
func (c *Chat) ActivityAt() time.Time {
	if c.LatestMessageAt != nil && c.LatestMessageAt.After(c.UpdatedAt) {
		return *c.LatestMessageAt
	}
	return c.UpdatedAt
}
