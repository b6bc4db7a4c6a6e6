package controller

import (
	"chat_relation_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// actorID 取出已认证用户，缺失时直接写 401
func actorID(c *gin.Context) (uint, bool) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.AbortUnauthorized(c)
		return 0, false
	}
	return claims.UserID, true
}

func pathUserID(c *gin.Context, name string) (uint, bool) {
	id, err := util.ParseUserID(c.Param(name))
	if err != nil {
		util.RespondError(c, err)
		return 0, false
	}
	return id, true
}

// UserTargetRequest 以用户为目标的请求体
type UserTargetRequest struct {
	UserID uint `json:"userId" binding:"required" example:"2"`
}
