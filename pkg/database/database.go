package database

import (
	"chat_relation_backend/internal/config"
	"chat_relation_backend/internal/model"
	"chat_relation_backend/pkg/logger"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newGormLogger 把 gorm 的慢查询和错误写进 zap；查不到记录是正常分支，不记录
func newGormLogger() gormlogger.Interface {
	return gormlogger.New(zap.NewStdLog(logger.Log.Named("gorm")), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// InitDB 打开数据库连接，TranslateError 打开后唯一键冲突会转成 gorm.ErrDuplicatedKey
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         newGormLogger(),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gcfg)
		if err != nil {
			return nil, err
		}
		// sqlite 只有一个写者，串行化连接避免 database is locked
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	default:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		db, err = gorm.Open(mysql.Open(dsn), gcfg)
		if err != nil {
			return nil, err
		}
	}

	logger.Log.Info("Database connection established", zap.String("driver", cfg.Driver))
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.UserBlock{},
		&model.Friendship{},
		&model.FriendRequest{},
		&model.Chat{},
		&model.ChatMember{},
		&model.ChatBlockedUser{},
		&model.ChatJoinRequest{},
	)
	if err != nil {
		return err
	}
	logger.Log.Info("Database migration completed")
	return nil
}
