package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PASETO_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, "08:00", cfg.Notifier.SendAt)
	assert.False(t, cfg.Notifier.Enabled())
}

func TestLoadRejectsBadPasetoKey(t *testing.T) {
	t.Setenv("PASETO_KEY", "too-short")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadSendAt(t *testing.T) {
	t.Setenv("PASETO_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("NOTIFIER_SEND_AT", "not-a-time")

	_, err := Load()
	require.Error(t, err)
}

func TestSessionIdleTimeoutFromEnv(t *testing.T) {
	t.Setenv("PASETO_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("SESSION_IDLE_TIMEOUT", "60")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Session.IdleTimeout)
}

func TestDatabaseConnectionString(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: "5432", User: "u", Password: "p",
		DBName: "tastebook", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=u password=p dbname=tastebook sslmode=disable",
		c.ConnectionString())

	c.ChannelBinding = "require"
	assert.Contains(t, c.ConnectionString(), "channel_binding=require")
}
