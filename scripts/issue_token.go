// 本地调试用：按邮箱查找或创建用户并签发 JWT
//
// 正式环境的 token 由认证服务签发，此脚本只用于联调。
//
// 用法: go run scripts/issue_token.go -email alice@example.com -name Alice

package main

import (
	"chat_relation_backend/internal/config"
	"chat_relation_backend/internal/model"
	"chat_relation_backend/internal/repository"
	"chat_relation_backend/internal/util"
	"chat_relation_backend/pkg/database"
	"chat_relation_backend/pkg/logger"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
)

func main() {
	email := flag.String("email", "", "用户邮箱")
	name := flag.String("name", "", "用户昵称，创建新用户时使用")
	ttl := flag.Duration("ttl", 24*time.Hour, "token 有效期")
	flag.Parse()

	if *email == "" {
		log.Fatal("-email is required")
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)

	var user model.User
	err = db.WithContext(ctx).Where("email = ?", *email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = model.User{Name: *name, Email: *email}
		if user.Name == "" {
			user.Name = *email
		}
		err = users.Create(ctx, &user)
	}
	if err != nil {
		log.Fatalf("查询用户失败: %v", err)
	}

	token, err := util.GenerateJWT(user.ID, user.Email, cfg.JWT.Secret, *ttl)
	if err != nil {
		log.Fatalf("签发 token 失败: %v", err)
	}
	fmt.Printf("user_id=%d\n%s\n", user.ID, token)
}
