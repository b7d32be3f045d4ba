package platform_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notekeep/internal/platform"
	"github.com/aretw0/notekeep/pkg/adapters/drive"
	"github.com/aretw0/notekeep/pkg/adapters/s3"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, platform.ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("Full File", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, `
adapter: sqlite
path: data/notes.db
event_buffer: 10
backup:
  provider: drive
  token_env: MY_TOKEN
`)
		cfg, err := platform.LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Adapter)
		assert.Equal(t, filepath.Join(dir, "data/notes.db"), cfg.Path, "relative to the file")
		assert.Equal(t, cfg.Path, cfg.URI())
		assert.Equal(t, 10, cfg.EventBuffer)
		assert.Equal(t, platform.EnvToken("MY_TOKEN"), cfg.Backup.Tokens())

		opts, err := cfg.Options(nil)
		require.NoError(t, err)
		assert.Len(t, opts, 4)
	})

	t.Run("Empty File", func(t *testing.T) {
		cfg, err := platform.LoadConfig(writeConfig(t, t.TempDir(), ""))
		require.NoError(t, err)
		assert.Empty(t, cfg.Adapter)
		assert.Equal(t, platform.EnvToken(platform.DefaultTokenEnv), cfg.Backup.Tokens())
	})

	t.Run("Unknown Key", func(t *testing.T) {
		_, err := platform.LoadConfig(writeConfig(t, t.TempDir(), "adaptr: fs\n"))
		assert.Error(t, err)
	})

	t.Run("Redis URI", func(t *testing.T) {
		cfg, err := platform.LoadConfig(writeConfig(t, t.TempDir(), "redis:\n  url: redis://h:1\n  namespace: x:\n"))
		require.NoError(t, err)
		assert.Equal(t, "redis://h:1", cfg.URI())
	})
}

func TestFindConfig(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "adapter: memory\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	cfg, ok, err := platform.FindConfig(nested)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "memory", cfg.Adapter)

	marked := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(marked, platform.SystemDir), 0755))
	_, ok, err = platform.FindConfig(marked)
	require.NoError(t, err)
	assert.False(t, ok, "marker without config file")
}

func TestBackupConfig_Client(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		c, err := platform.BackupConfig{}.Client(nil)
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("Drive", func(t *testing.T) {
		c, err := platform.BackupConfig{Provider: "drive", Drive: platform.DriveConfig{Endpoint: "http://x/drive/v3/"}}.Client(nil)
		require.NoError(t, err)
		assert.IsType(t, &drive.Client{}, c)
	})

	t.Run("S3", func(t *testing.T) {
		c, err := platform.BackupConfig{Provider: "s3", S3: platform.S3Config{
			Bucket: "b", Region: "r", AccessKeyID: "a", SecretAccessKey: "s",
		}}.Client(nil)
		require.NoError(t, err)
		assert.IsType(t, &s3.Client{}, c)

		_, err = platform.BackupConfig{Provider: "s3"}.Client(nil)
		assert.Error(t, err)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := platform.BackupConfig{Provider: "ftp"}.Client(nil)
		assert.Error(t, err)
	})
}

func TestEnvToken(t *testing.T) {
	t.Setenv("NOTEKEEP_TEST_TOKEN", "abc")
	tok, err := platform.EnvToken("NOTEKEEP_TEST_TOKEN").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}
