package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("HOME", t.TempDir())

		cfg, err := Load()

		req.NoError(err)
		req.Equal(StorageSQLite, cfg.Storage)
		req.Equal(9, cfg.BadgeCap)
		req.True(cfg.PiPEnabled)
		req.NotEmpty(cfg.DatabasePath)
	})

	t.Run("should reject unknown storage backend", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("HOME", t.TempDir())
		t.Setenv("CALLCHAT_STORAGE", "redis")

		_, err := Load()

		req.ErrorContains(err, "CALLCHAT_STORAGE")
	})

	t.Run("should reject non-positive badge cap", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("HOME", t.TempDir())
		t.Setenv("CALLCHAT_BADGE_CAP", "0")

		_, err := Load()

		req.ErrorContains(err, "CALLCHAT_BADGE_CAP")
	})

	t.Run("should keep generated user id across loads", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("HOME", t.TempDir())
		t.Setenv("CALLCHAT_USER_ID", "")

		first, err := Load()
		req.NoError(err)
		req.NotEmpty(first.UserID)

		second, err := Load()
		req.NoError(err)
		req.Equal(first.UserID, second.UserID)

		data, err := os.ReadFile(filepath.Join(first.DataDir, userIDFile))
		req.NoError(err)
		req.Contains(string(data), first.UserID)
	})

	t.Run("should prefer configured user id", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("HOME", t.TempDir())
		t.Setenv("CALLCHAT_USER_ID", "alice")

		cfg, err := Load()

		req.NoError(err)
		req.Equal("alice", cfg.UserID)
	})
}

func TestConfig_Stylesheets(t *testing.T) {
	req := require.New(t)
	cfg := Config{PiPStylesheets: " /app.css, ,/theme.css"}

	req.Equal([]string{"/app.css", "/theme.css"}, cfg.Stylesheets())
}
