package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_PATH", filepath.Join(t.TempDir(), "sessions"))

	require.NoError(t, LoadConfig(""))
	c := Config()
	assert.Equal(t, "3000", c.ServerPort)
	assert.Equal(t, DefaultSessionIdentity, c.AdminAPIKey)
	assert.Equal(t, 5*time.Second, c.ReconnectInterval)
	assert.Equal(t, uint(5), c.MaxRetries)
	assert.Equal(t, time.Second, c.QRWaitDelay)
	assert.Empty(t, c.WebhookURL)
	assert.DirExists(t, c.SessionPath)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("API_KEY", "supersecret")
	t.Setenv("SESSION_PATH", t.TempDir())
	t.Setenv("RECONNECT_INTERVAL", "250ms")
	t.Setenv("MAX_RETRIES", "10")
	t.Setenv("WEBHOOK_URL", "https://example.com/hook")

	require.NoError(t, LoadConfig(""))
	c := Config()
	assert.Equal(t, "8080", c.ServerPort)
	assert.Equal(t, "supersecret", c.AdminAPIKey)
	assert.Equal(t, 250*time.Millisecond, c.ReconnectInterval)
	assert.Equal(t, uint(10), c.MaxRetries)
	assert.Equal(t, "https://example.com/hook", c.WebhookURL)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SESSION_PATH", t.TempDir())

	t.Setenv("RECONNECT_INTERVAL", "not-a-duration")
	assert.Error(t, LoadConfig(""))
	t.Setenv("RECONNECT_INTERVAL", "5s")

	t.Setenv("MAX_RETRIES", "minus one")
	assert.Error(t, LoadConfig(""))
	t.Setenv("MAX_RETRIES", "5")

	t.Setenv("PORT", "not-a-port")
	assert.Error(t, LoadConfig(""))
	t.Setenv("PORT", "3000")

	t.Setenv("WEBHOOK_URL", "::not-a-url")
	assert.Error(t, LoadConfig(""))
}
