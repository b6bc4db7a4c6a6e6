package middleware

import (
	"chat_relation_backend/internal/config"
	"chat_relation_backend/internal/util"
	"chat_relation_backend/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware 解析 Bearer token，把 actor 放入上下文。token 由外部认证服务签发
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			util.AbortUnauthorized(c)
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT解析错误", zap.Error(err))
			util.AbortUnauthorized(c)
			return
		}

		util.SetUser(c, claims)
		c.Next()
	}
}
