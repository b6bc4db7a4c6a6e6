package app

import (
	"chat_relation_backend/docs"
	"chat_relation_backend/internal/config"
	"chat_relation_backend/internal/middleware"
	"chat_relation_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerChatRoutes(authGroup, c)
		a.registerFriendRoutes(authGroup, c)
		a.registerUserRoutes(authGroup, c)
	}
}

func (a *App) registerChatRoutes(r *gin.RouterGroup, c *controllers) {
	chats := r.Group("/chats")
	{
		chats.POST("/direct", c.chat.AccessDirectChat)
		chats.POST("/group", c.chat.CreateGroup)
		chats.GET("", c.chat.ListChats)
		chats.GET("/:id", c.chat.GetChat)
		chats.PUT("/:id/name", c.chat.RenameChat)

		chats.POST("/:id/members", c.chat.AddMember)
		chats.DELETE("/:id/members/:userId", c.chat.RemoveMember)

		chats.POST("/:id/join-requests", c.chat.RequestToJoin)
		chats.POST("/:id/join-requests/:userId/approve", c.chat.ApproveJoinRequest)
		chats.POST("/:id/join-requests/:userId/decline", c.chat.DeclineJoinRequest)

		// 会话级屏蔽
		chats.POST("/:id/blocks", c.chat.BlockInChat)
		chats.DELETE("/:id/blocks/:userId", c.chat.UnblockInChat)
	}
}

func (a *App) registerFriendRoutes(r *gin.RouterGroup, c *controllers) {
	friends := r.Group("/friends")
	{
		friends.POST("/requests", c.friendship.SendRequest)
		friends.GET("/requests", c.friendship.ListRequests)
		friends.POST("/requests/:id/accept", c.friendship.AcceptRequest)
		friends.POST("/requests/:id/reject", c.friendship.RejectRequest)
		friends.GET("", c.friendship.ListFriends)
		friends.DELETE("/:userId", c.friendship.RemoveFriend)
	}
}

func (a *App) registerUserRoutes(r *gin.RouterGroup, c *controllers) {
	r.GET("/users", c.user.SearchUsers)

	blocks := r.Group("/blocks")
	{
		blocks.POST("", c.user.BlockUser)
		blocks.GET("", c.user.ListBlocked)
		blocks.DELETE("/:userId", c.user.UnblockUser)
	}
}
