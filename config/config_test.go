package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("AUTH_TOKENS", "")

	cfg, err := LoadEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Redis.LockTTL)
	assert.Empty(t, cfg.Auth.Tokens)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("LOCK_TTL_SECONDS", "3")
	t.Setenv("AUTH_TOKENS", "t1:alice, t2:bob")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.DB.Path)
	assert.Equal(t, 3*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, map[string]string{"t1": "alice", "t2": "bob"}, cfg.Auth.Tokens)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_ProductionRequiresTokens(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_TOKENS", "")

	_, err := LoadEnv()
	assert.Error(t, err)
}

func TestParseTokens_Malformed(t *testing.T) {
	_, err := parseTokens("no-operator")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(LoggerConfig{Level: "debug", Encoding: "json"}, false)
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = NewLogger(LoggerConfig{Level: "loud"}, false)
	assert.Error(t, err)
}
