package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("nope.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default().Sync, cfg.Sync)
	assert.Equal(t, "attachments", cfg.Storage.AttachmentsBucket)
	assert.Equal(t, "avatars", cfg.Storage.AvatarsBucket)
	assert.Equal(t, 5*time.Minute, cfg.Sync.GroupWindow)
}

func TestLoadPartialYAMLKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9000\"\nsync:\n  directPageSize: 30\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 30, cfg.Sync.DirectPageSize)
	assert.Equal(t, 50, cfg.Sync.ChannelPageSize)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("SYNC_GROUP_WINDOW", "2m")
	t.Setenv("REDIS_DB", "0")
	t.Setenv("NODE_ID", "12")

	cfg, err := Load("missing.yaml")
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Sync.GroupWindow)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.EqualValues(t, 12, cfg.Node.ID)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STORAGE_URL_MODE=public\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("STORAGE_URL_MODE") })

	cfg, err := Load("missing.yaml")
	require.NoError(t, err)
	assert.Equal(t, "public", cfg.Storage.URLMode)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [::"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
