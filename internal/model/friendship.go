package model

import (
	"fmt"
	"time"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// Friendship 好友关系表，每条好友关系存两行（双向）
type Friendship struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	FriendID  uint      `gorm:"primaryKey;autoIncrement:false" json:"friendId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Friendship) TableName() string {
	return "friendships"
}

// FriendRequest 好友申请表
//
// PendingKey holds the unordered pair key while the request is pending and is
// cleared when it reaches a terminal status. The unique index on it keeps at
// most one pending request between two users, in either direction.
type FriendRequest struct {
	UUIDBase
	SenderID   uint                `gorm:"index;not null" json:"senderId"`
	ReceiverID uint                `gorm:"index;not null" json:"receiverId"`
	Status     FriendRequestStatus `gorm:"size:16;not null;default:'pending'" json:"status"`
	Message    string              `gorm:"size:255" json:"message"`
	PendingKey *string             `gorm:"size:64;uniqueIndex" json:"-"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

func (FriendRequest) TableName() string {
	return "friend_requests"
}

// PairKey normalizes an unordered pair of user ids.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
