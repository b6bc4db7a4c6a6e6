package controller

import (
	"chat_relation_backend/internal/util"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const healthProbeTimeout = 2 * time.Second

// HealthController 汇报存储和私聊锁依赖的可用性
type HealthController struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewHealthController rdb 为 nil 时表示未启用 Redis，不参与健康判断
func NewHealthController(db *gorm.DB, rdb *redis.Client) *HealthController {
	return &HealthController{DB: db, Redis: rdb}
}

// @Summary 健康检查
// @Description 检查数据库与 Redis（启用时）的连通性，任一不可用返回 503
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	probeCtx, cancel := context.WithTimeout(ctx.Request.Context(), healthProbeTimeout)
	defer cancel()

	components := gin.H{"database": c.databaseStatus(probeCtx)}
	healthy := components["database"] == "up"
	if c.Redis != nil {
		status := "up"
		if err := c.Redis.Ping(probeCtx).Err(); err != nil {
			status = "down"
			healthy = false
		}
		components["redis"] = status
	}

	if !healthy {
		ctx.JSON(http.StatusServiceUnavailable, util.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "Dependency unavailable",
			Data:    gin.H{"status": "degraded", "components": components},
		})
		return
	}
	util.Success(ctx, gin.H{"status": "ok", "components": components})
}

func (c *HealthController) databaseStatus(ctx context.Context) string {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return "down"
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "down"
	}
	return "up"
}
