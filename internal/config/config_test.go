package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := writeConfig(t, `
database:
  driver: sqlite
  sqlite_path: "file::memory:"
jwt:
  secret: dev
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 20, cfg.Visibility.SearchLimit)
	assert.Equal(t, 5*time.Second, cfg.Chat.DirectLockTTL)
	assert.False(t, cfg.Chat.RenameRequiresAdmin)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := writeConfig(t, `
database:
  driver: mysql
  host: db.internal
jwt:
  secret: dev
`)
	t.Setenv("DATABASE_HOST", "override.internal")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
}

func TestLoadConfig_Policies(t *testing.T) {
	dir := writeConfig(t, `
database:
  driver: sqlite
chat:
  rename_requires_admin: true
  membership_requires_admin: true
  direct_lock_ttl: 2s
visibility:
  hide_groups_with_blocked_members: true
  search_limit: 5
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.True(t, cfg.Chat.RenameRequiresAdmin)
	assert.True(t, cfg.Chat.MembershipRequiresAdmin)
	assert.Equal(t, 2*time.Second, cfg.Chat.DirectLockTTL)
	assert.True(t, cfg.Visibility.HideGroupsWithBlockedMembers)
	assert.Equal(t, 5, cfg.Visibility.SearchLimit)
}

func TestLoadConfig_RejectsUnknownDriver(t *testing.T) {
	dir := writeConfig(t, `
database:
  driver: mongo
`)
	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfig_ReleaseNeedsStrongSecret(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: release
database:
  driver: sqlite
jwt:
  secret: short
`)
	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "JWT secret is too short")
}
