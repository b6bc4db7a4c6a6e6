package service

import (
	"chat_relation_backend/internal/config"
	"chat_relation_backend/internal/repository"
	"chat_relation_backend/internal/testutil"
	"testing"

	"go.uber.org/goleak"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type engine struct {
	db         *gorm.DB
	chats      *ChatRegistry
	graph      *RelationshipGraph
	blocks     *BlockStore
	visibility *VisibilityFilter
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	return newEngineWithPolicy(t, config.ChatConfig{}, config.VisibilityConfig{SearchLimit: 20})
}

func newEngineWithPolicy(t *testing.T, chatPolicy config.ChatConfig, visPolicy config.VisibilityConfig) *engine {
	t.Helper()
	db := testutil.NewDB(t)

	users := repository.NewUserRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	chatRepo := repository.NewChatRepository(db)
	friendRepo := repository.NewFriendshipRepository(db)

	e := &engine{db: db}
	e.chats = NewChatRegistry(db, chatRepo, users, blockRepo, nil, chatPolicy)
	e.graph = NewRelationshipGraph(db, friendRepo, users)
	e.blocks = NewBlockStore(db, blockRepo, users, chatRepo)
	e.visibility = NewVisibilityFilter(e.chats, e.blocks, e.graph, visPolicy)
	return e
}
