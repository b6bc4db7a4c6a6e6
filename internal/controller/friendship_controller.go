package controller

import (
	"chat_relation_backend/internal/model"
	"chat_relation_backend/internal/service"
	"chat_relation_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type FriendshipController struct {
	Graph *service.RelationshipGraph
}

// SendFriendRequestRequest 发送好友申请请求
type SendFriendRequestRequest struct {
	ReceiverID uint   `json:"receiverId" binding:"required" example:"1"`
	Message    string `json:"message" binding:"max=255" example:"我是王小明"`
}

func NewFriendshipController(graph *service.RelationshipGraph) *FriendshipController {
	return &FriendshipController{Graph: graph}
}

// SendRequest godoc
// @Summary 发送好友申请
// @Tags 好友
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body SendFriendRequestRequest true "好友申请"
// @Success 201 {object} util.Response{data=model.FriendRequest}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /friends/requests [post]
func (ctrl *FriendshipController) SendRequest(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	fr, err := ctrl.Graph.SendRequest(c.Request.Context(), actor, req.ReceiverID, req.Message)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Created(c, fr)
}

// AcceptRequest godoc
// @Summary 同意好友申请
// @Description 只有接收方可以处理
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "申请ID"
// @Success 200 {object} util.Response{data=model.FriendRequest}
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /friends/requests/{id}/accept [post]
func (ctrl *FriendshipController) AcceptRequest(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	fr, err := ctrl.Graph.AcceptRequest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, fr)
}

// RejectRequest godoc
// @Summary 拒绝好友申请
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "申请ID"
// @Success 200 {object} util.Response{data=model.FriendRequest}
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /friends/requests/{id}/reject [post]
func (ctrl *FriendshipController) RejectRequest(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	fr, err := ctrl.Graph.RejectRequest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, fr)
}

// ListRequests godoc
// @Summary 好友申请列表
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "pending / accepted / rejected"
// @Success 200 {object} util.Response{data=[]model.FriendRequest}
// @Router /friends/requests [get]
func (ctrl *FriendshipController) ListRequests(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	reqs, err := ctrl.Graph.ListRequests(c.Request.Context(), actor, model.FriendRequestStatus(c.Query("status")))
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, reqs)
}

// ListFriends godoc
// @Summary 好友列表
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.User}
// @Router /friends [get]
func (ctrl *FriendshipController) ListFriends(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	friends, err := ctrl.Graph.ListFriends(c.Request.Context(), actor)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, friends)
}

// RemoveFriend godoc
// @Summary 删除好友
// @Tags 好友
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "好友ID"
// @Success 200 {object} util.Response
// @Router /friends/{userId} [delete]
func (ctrl *FriendshipController) RemoveFriend(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	other, ok := pathUserID(c, "userId")
	if !ok {
		return
	}
	if err := ctrl.Graph.RemoveFriend(c.Request.Context(), actor, other); err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, nil)
}
