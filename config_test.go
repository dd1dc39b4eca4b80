package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "PRESENCE_POLICY", "HISTORY_LIMIT", "SEND_BUFFER", "ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_DEVELOPMENT", "MAX_MESSAGE_BYTES"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 12345, cfg.Port)
	assert.Equal(t, PolicyKeepFirst, cfg.PresencePolicy)
	assert.Equal(t, 0, cfg.HistoryLimit)
	assert.Equal(t, 256, cfg.SendBuffer)
	assert.Equal(t, int64(1048576), cfg.MaxMessageBytes)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogDevelopment)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, ":12345", cfg.addr())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("PRESENCE_POLICY", "replace")
	t.Setenv("HISTORY_LIMIT", "500")
	t.Setenv("ALLOWED_ORIGINS", "https://shop.example,https://seller.example")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, PolicyReplace, cfg.PresencePolicy)
	assert.Equal(t, 500, cfg.HistoryLimit)
	assert.Equal(t, []string{"https://shop.example", "https://seller.example"}, cfg.AllowedOrigins)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want error
	}{
		{"policy", "PRESENCE_POLICY", "takeover", errInvalidPolicy},
		{"negative history", "HISTORY_LIMIT", "-1", errInvalidLimit},
		{"zero buffer", "SEND_BUFFER", "0", errInvalidLimit},
		{"port out of range", "PORT", "70000", errInvalidLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := loadConfig()
			require.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("not a number", func(t *testing.T) {
		t.Setenv("PORT", "abc")
		_, err := loadConfig()
		require.Error(t, err)
	})
}
