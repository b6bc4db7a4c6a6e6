package controller

import (
	"chat_relation_backend/internal/service"
	"chat_relation_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// UserController 用户搜索与用户级屏蔽
type UserController struct {
	Blocks     *service.BlockStore
	Visibility *service.VisibilityFilter
}

func NewUserController(blocks *service.BlockStore, visibility *service.VisibilityFilter) *UserController {
	return &UserController{Blocks: blocks, Visibility: visibility}
}

// SearchUsers godoc
// @Summary 搜索用户
// @Description 按昵称或邮箱模糊搜索，不包含自己和已屏蔽的用户
// @Tags 用户
// @Produce json
// @Security ApiKeyAuth
// @Param search query string false "关键字"
// @Success 200 {object} util.Response{data=[]model.User}
// @Router /users [get]
func (ctrl *UserController) SearchUsers(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	users, err := ctrl.Visibility.VisibleUsersFor(c.Request.Context(), actor, c.Query("search"))
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, users)
}

// BlockUser godoc
// @Summary 屏蔽用户
// @Tags 用户
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body UserTargetRequest true "用户"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "already blocked"
// @Router /blocks [post]
func (ctrl *UserController) BlockUser(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req UserTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}
	if err := ctrl.Blocks.BlockUser(c.Request.Context(), actor, req.UserID); err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, nil)
}

// UnblockUser godoc
// @Summary 取消屏蔽
// @Tags 用户
// @Produce json
// @Security ApiKeyAuth
// @Param userId path int true "用户ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "not blocked"
// @Router /blocks/{userId} [delete]
func (ctrl *UserController) UnblockUser(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	target, ok := pathUserID(c, "userId")
	if !ok {
		return
	}
	if err := ctrl.Blocks.UnblockUser(c.Request.Context(), actor, target); err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, nil)
}

// ListBlocked godoc
// @Summary 已屏蔽用户列表
// @Tags 用户
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.User}
// @Router /blocks [get]
func (ctrl *UserController) ListBlocked(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	users, err := ctrl.Blocks.ListBlocked(c.Request.Context(), actor)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, users)
}
