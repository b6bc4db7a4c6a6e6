package controller

import (
	"chat_relation_backend/internal/service"
	"chat_relation_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ChatController 会话与成员管理
type ChatController struct {
	Chats      *service.ChatRegistry
	Blocks     *service.BlockStore
	Visibility *service.VisibilityFilter
}

// CreateDirectChatRequest 创建或获取私聊
type CreateDirectChatRequest struct {
	UserID uint `json:"userId" binding:"required" example:"2"`
}

// CreateGroupRequest 创建群聊请求
type CreateGroupRequest struct {
	Name      string `json:"name" binding:"required" example:"学习小组"`
	MemberIDs []uint `json:"memberIds" swaggertype:"array,number" example:"2,3"`
}

type RenameChatRequest struct {
	Name string `json:"name" binding:"required" example:"新群名"`
}

func NewChatController(chats *service.ChatRegistry, blocks *service.BlockStore, visibility *service.VisibilityFilter) *ChatController {
	return &ChatController{Chats: chats, Blocks: blocks, Visibility: visibility}
}

// AccessDirectChat godoc
// @Summary 创建或获取私聊
// @Description 同一对用户只会存在一个私聊会话
// @Tags 会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body CreateDirectChatRequest true "对方用户"
// @Success 200 {object} util.Response{data=model.Chat}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /chats/direct [post]
func (ctrl *ChatController) AccessDirectChat(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req CreateDirectChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	chat, err := ctrl.Chats.GetOrCreateDirectChat(c.Request.Context(), actor, req.UserID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, chat)
}

// CreateGroup godoc
// @Summary 创建群聊
// @Description 创建者自动成为管理员，成员总数至少 3 人
// @Tags 会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body CreateGroupRequest true "创建群聊请求"
// @Success 201 {object} util.Response{data=model.Chat}
// @Failure 400 {object} util.Response
// @Router /chats/group [post]
func (ctrl *ChatController) CreateGroup(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	chat, err := ctrl.Chats.CreateGroupChat(c.Request.Context(), actor, req.Name, req.MemberIDs)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Created(c, chat)
}

// ListChats godoc
// @Summary 会话列表
// @Description 按最近活跃时间倒序，已屏蔽用户的私聊不显示
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Chat}
// @Router /chats [get]
func (ctrl *ChatController) ListChats(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	chats, err := ctrl.Visibility.VisibleChatsFor(c.Request.Context(), actor)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, chats)
}

// GetChat godoc
// @Summary 会话详情
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.Chat}
// @Failure 404 {object} util.Response
// @Router /chats/{id} [get]
func (ctrl *ChatController) GetChat(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	chat, err := ctrl.Chats.GetChat(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, chat)
}

// RenameChat godoc
// @Summary 修改会话名称
// @Tags 会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param request body RenameChatRequest true "新名称"
// @Success 200 {object} util.Response{data=model.Chat}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /chats/{id}/name [put]
func (ctrl *ChatController) RenameChat(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req RenameChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	chat, err := ctrl.Chats.RenameChat(c.Request.Context(), actor, c.Param("id"), req.Name)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, chat)
}

// AddMember godoc
// @Summary 添加群成员
// @Tags 会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param request body UserTargetRequest true "用户"
// @Success 200 {object} util.Response{data=model.Chat}
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /chats/{id}/members [post]
func (ctrl *ChatController) AddMember(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req UserTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	chat, err := ctrl.Chats.AddMember(c.Request.Context(), actor, c.Param("id"), req.UserID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, chat)
}

// RemoveMember godoc
// @Summary 移除群成员
// @Description 管理员被移除时，最早加入的成员成为新管理员
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param userId path int true "用户ID"
// @Success 200 {object} util.Response{data=model.Chat}
// @Router /chats/{id}/members/{userId} [delete]
func (ctrl *ChatController) RemoveMember(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	userID, ok := pathUserID(c, "userId")
	if !ok {
		return
	}

	chat, err := ctrl.Chats.RemoveMember(c.Request.Context(), actor, c.Param("id"), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, chat)
}

// RequestToJoin godoc
// @Summary 申请加入群聊
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.Chat}
// @Failure 404 {object} util.Response
// @Router /chats/{id}/join-requests [post]
func (ctrl *ChatController) RequestToJoin(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	chat, err := ctrl.Chats.RequestToJoin(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, chat)
}

// ApproveJoinRequest godoc
// @Summary 通过入群申请
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param userId path int true "申请人ID"
// @Success 200 {object} util.Response{data=model.Chat}
// @Failure 403 {object} util.Response
// @Router /chats/{id}/join-requests/{userId}/approve [post]
func (ctrl *ChatController) ApproveJoinRequest(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	userID, ok := pathUserID(c, "userId")
	if !ok {
		return
	}
	chat, err := ctrl.Chats.ApproveJoinRequest(c.Request.Context(), actor, c.Param("id"), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, chat)
}

// DeclineJoinRequest godoc
// @Summary 拒绝入群申请
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param userId path int true "申请人ID"
// @Success 200 {object} util.Response{data=model.Chat}
// @Failure 403 {object} util.Response
// @Router /chats/{id}/join-requests/{userId}/decline [post]
func (ctrl *ChatController) DeclineJoinRequest(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	userID, ok := pathUserID(c, "userId")
	if !ok {
		return
	}
	chat, err := ctrl.Chats.DeclineJoinRequest(c.Request.Context(), actor, c.Param("id"), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, chat)
}

// BlockInChat godoc
// @Summary 会话内屏蔽用户
// @Description 仅群管理员可操作，被屏蔽用户会被移出群聊
// @Tags 会话
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param request body UserTargetRequest true "用户"
// @Success 200 {object} util.Response{data=model.Chat}
// @Failure 409 {object} util.Response
// @Router /chats/{id}/blocks [post]
func (ctrl *ChatController) BlockInChat(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req UserTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	chat, err := ctrl.Blocks.BlockInChat(c.Request.Context(), actor, c.Param("id"), req.UserID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, chat)
}

// UnblockInChat godoc
// @Summary 取消会话内屏蔽
// @Tags 会话
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "会话ID"
// @Param userId path int true "用户ID"
// @Success 200 {object} util.Response{data=model.Chat}
// @Failure 409 {object} util.Response
// @Router /chats/{id}/blocks/{userId} [delete]
func (ctrl *ChatController) UnblockInChat(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	userID, ok := pathUserID(c, "userId")
	if !ok {
		return
	}
	chat, err := ctrl.Blocks.UnblockInChat(c.Request.Context(), actor, c.Param("id"), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, chat)
}
