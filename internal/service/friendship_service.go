package service

import (
	"chat_relation_backend/internal/model"
	"chat_relation_backend/internal/repository"
	"chat_relation_backend/internal/util"
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// RelationshipGraph 好友申请生命周期与好友关系
type RelationshipGraph struct {
	DB      *gorm.DB
	Friends *repository.FriendshipRepository
	Users   *repository.UserRepository
}

func NewRelationshipGraph(db *gorm.DB, friends *repository.FriendshipRepository, users *repository.UserRepository) *RelationshipGraph {
	return &RelationshipGraph{DB: db, Friends: friends, Users: users}
}

func (s *RelationshipGraph) SendRequest(ctx context.Context, senderID, receiverID uint, message string) (req *model.FriendRequest, err error) {
	const op = "friend.send_request"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	if senderID == receiverID {
		return nil, util.Validation("cannot send a friend request to yourself")
	}
	if err := requireUsers(ctx, s.Users, op, senderID, receiverID); err != nil {
		return nil, err
	}

	key := model.PairKey(senderID, receiverID)
	req = &model.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     model.FriendRequestPending,
		Message:    strings.TrimSpace(message),
		PendingKey: &key,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		friends := s.Friends.WithTx(tx)

		isFriend, err := friends.IsFriend(ctx, senderID, receiverID)
		if err != nil {
			return util.ServerError(op, err)
		}
		if isFriend {
			return util.Conflict("already friends")
		}

		if _, err := friends.PendingBetween(ctx, senderID, receiverID); err == nil {
			return util.Conflict("a pending friend request already exists between these users")
		} else if !isNotFound(err) {
			return util.ServerError(op, err)
		}

		if err := friends.CreateRequest(ctx, req); err != nil {
			return err
		}
		// 重新读取以带上发送方和接收方
		req, err = friends.GetRequest(ctx, req.ID)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 并发发送时由 pending_key 唯一索引拦截
		return nil, util.Conflict("a pending friend request already exists between these users")
	}
	if err != nil {
		return nil, util.ServerError(op, err)
	}
	return req, nil
}

func (s *RelationshipGraph) AcceptRequest(ctx context.Context, actorID uint, requestID string) (req *model.FriendRequest, err error) {
	const op = "friend.accept_request"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	return s.resolve(ctx, op, actorID, requestID, model.FriendRequestAccepted)
}

// RejectRequest 保留申请记录，状态置为 rejected
func (s *RelationshipGraph) RejectRequest(ctx context.Context, actorID uint, requestID string) (req *model.FriendRequest, err error) {
	const op = "friend.reject_request"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	return s.resolve(ctx, op, actorID, requestID, model.FriendRequestRejected)
}

// resolve moves a pending request to status. The conditional update on
// status = pending makes the transition single-writer: a concurrent loser
// matches no row and gets a conflict.
func (s *RelationshipGraph) resolve(ctx context.Context, op string, actorID uint, requestID string, status model.FriendRequestStatus) (*model.FriendRequest, error) {
	var result *model.FriendRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		friends := s.Friends.WithTx(tx)

		req, err := friends.GetRequest(ctx, requestID)
		if err != nil {
			return notFoundOr(op, err, "friend request %s not found", requestID)
		}
		if req.ReceiverID != actorID {
			return util.Unauthorized("only the receiver can answer this friend request")
		}
		if req.Status != model.FriendRequestPending {
			return util.Conflict("friend request already %s", req.Status)
		}

		ok, err := friends.ResolveRequest(ctx, requestID, status)
		if err != nil {
			return util.ServerError(op, err)
		}
		if !ok {
			return util.Conflict("friend request already answered")
		}

		if status == model.FriendRequestAccepted {
			if err := friends.CreateFriendship(ctx, req.SenderID, req.ReceiverID); err != nil {
				return util.ServerError(op, err)
			}
		}

		result, err = friends.GetRequest(ctx, requestID)
		return util.ServerError(op, err)
	})
	if err != nil {
		return nil, util.ServerError(op, err)
	}
	return result, nil
}

// RemoveFriend 双向删除，不是好友时也返回成功
func (s *RelationshipGraph) RemoveFriend(ctx context.Context, userID, otherID uint) (err error) {
	const op = "friend.remove"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	if userID == otherID {
		return nil
	}
	return util.ServerError(op, s.Friends.DeleteFriendship(ctx, userID, otherID))
}

func (s *RelationshipGraph) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	ok, err := s.Friends.IsFriend(ctx, a, b)
	return ok, util.ServerError("friend.are_friends", err)
}

func (s *RelationshipGraph) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids, err := s.Friends.GetFriendIDs(ctx, userID)
	return ids, util.ServerError("friend.ids", err)
}

func (s *RelationshipGraph) ListFriends(ctx context.Context, userID uint) (users []model.User, err error) {
	const op = "friend.list"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	ids, err := s.Friends.GetFriendIDs(ctx, userID)
	if err != nil {
		return nil, util.ServerError(op, err)
	}
	users, err = s.Users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, util.ServerError(op, err)
	}
	for i := range users {
		users[i].IsFriend = true
	}
	return users, nil
}

func (s *RelationshipGraph) ListPendingRequests(ctx context.Context, userID uint) ([]model.FriendRequest, error) {
	return s.ListRequests(ctx, userID, model.FriendRequestPending)
}

// ListRequests returns every request the user sent or received, newest
// first. An empty status lists all of them.
func (s *RelationshipGraph) ListRequests(ctx context.Context, userID uint, status model.FriendRequestStatus) (reqs []model.FriendRequest, err error) {
	const op = "friend.list_requests"
	ctx, end := startOp(ctx, op)
	defer end(&err)

	switch status {
	case "", model.FriendRequestPending, model.FriendRequestAccepted, model.FriendRequestRejected:
	default:
		return nil, util.Validation("unknown friend request status %q", status)
	}
	reqs, err = s.Friends.ListRequests(ctx, userID, status)
	return reqs, util.ServerError(op, err)
}
