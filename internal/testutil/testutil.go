// Package testutil 为各层测试提供内存 sqlite 数据库和种子数据。
package testutil

import (
	"chat_relation_backend/internal/config"
	"chat_relation_backend/internal/model"
	"chat_relation_backend/pkg/database"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens an isolated, migrated in-memory database that lives until the
// test finishes.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.InitDB(&config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8]),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// SeedUsers creates users named after the given names and returns their ids in
// the same order.
func SeedUsers(t testing.TB, db *gorm.DB, names ...string) []uint {
	t.Helper()
	ids := make([]uint, 0, len(names))
	for _, n := range names {
		u := &model.User{Name: n, Email: strings.ToLower(n) + "@example.com"}
		require.NoError(t, db.WithContext(context.Background()).Create(u).Error)
		ids = append(ids, u.ID)
	}
	return ids
}
