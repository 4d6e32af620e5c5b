package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/guildchat")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")
}

func TestParse_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 15, cfg.GroupCapacity)
	assert.True(t, cfg.GroupExclusive)
	assert.Equal(t, int64(4096), cfg.WSReadLimit)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestParse_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")
	t.Setenv("GROUP_CAPACITY", "2")
	t.Setenv("GROUP_EXCLUSIVE", "false")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000,https://chat.example.com")
	t.Setenv("WS_PONG_WAIT", "15s")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, 2, cfg.GroupCapacity)
	assert.False(t, cfg.GroupExclusive)
	assert.Equal(t, []string{"http://localhost:3000", "https://chat.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 15*time.Second, cfg.WSPongWait)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing required", env: map[string]string{"DATABASE_URL": ""}},
		{name: "bad duration", env: map[string]string{"TOKEN_TTL": "soon"}},
		{name: "zero capacity", env: map[string]string{"GROUP_CAPACITY": "0"}},
		{name: "negative buffer", env: map[string]string{"WS_SEND_BUFFER": "-1"}},
		{name: "unknown gin mode", env: map[string]string{"GIN_MODE": "production"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
