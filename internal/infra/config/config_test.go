package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_DefaultsAndMemoryStorage(t *testing.T) {
	t.Setenv("STORAGE", "memory")
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("ADMIN_ROLE_IDS", " 1, 2 ,,3")
	t.Setenv("REBALANCE_DEBOUNCE", "nope")
	t.Setenv("REBALANCE_INTERVAL", "24h")

	cfg := Load()

	assert.Equal(t, "memory", cfg.Storage)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"1", "2", "3"}, cfg.AdminRoleIDs)
	assert.Equal(t, 24*time.Hour, cfg.RebalanceInterval)
	assert.Equal(t, 5*time.Minute, cfg.RebalanceDebounce)
	assert.Equal(t, 10*time.Minute, cfg.RebalanceCheckEvery)
}

func TestLoad_Postgres(t *testing.T) {
	t.Setenv("STORAGE", "")
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("HTTP_ADDR", ":9000")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.Storage)
	assert.Equal(t, "postgres://x", cfg.DatabaseURL)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
}
