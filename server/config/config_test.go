package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "web/static", cfg.StaticDir)
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.Equal(t, 20, cfg.ReplayLimit)
	assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvAndDotenv(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("CHAT_ADDR=:9999\nCHAT_REPLAY_LIMIT=5\n"), 0o600))
	t.Setenv("CHAT_ADDR", ":7000")
	t.Setenv("CHAT_HANDSHAKE_TIMEOUT", "2s")
	t.Cleanup(func() { os.Unsetenv("CHAT_REPLAY_LIMIT") })

	cfg, err := Load(dotenv)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr, "environment wins over .env")
	assert.Equal(t, 5, cfg.ReplayLimit)
	assert.Equal(t, 2*time.Second, cfg.HandshakeTimeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"CHAT_HISTORY_LIMIT":     "-1",
		"CHAT_REPLAY_LIMIT":      "500",
		"CHAT_HANDSHAKE_TIMEOUT": "0s",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}

	t.Run("not a number", func(t *testing.T) {
		t.Setenv("CHAT_HISTORY_LIMIT", "lots")
		_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.Error(t, err)
	})
}
