package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, int64(150), cfg.Ledger.CardClosePoints)
	assert.Equal(t, 10, cfg.DB.MaxOpenConns)
	assert.Equal(t, "mail.outbox", cfg.AMQP.MailQueue)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.App.Origins())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadMigrateWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))
	t.Setenv("DB_NAME", "garbage_collector_test")

	_, err := Load()
	require.Error(t, err)

	cfg, err := LoadMigrate()
	require.NoError(t, err)
	assert.Equal(t, "garbage_collector_test", cfg.DB.Name)
	assert.Equal(t, 10, cfg.DB.MaxOpenConns)
	assert.Equal(t, "info", cfg.App.LogLevel)
}

func TestValidateRejectsShortSecret(t *testing.T) {
	cfg := Config{
		Auth:   AuthConfig{JWTSecret: "short", SessionTTL: time.Hour, ResetTokenTTL: time.Hour, BcryptCost: 10},
		Ledger: LedgerConfig{CardClosePoints: 150},
		DB:     DBConfig{MaxOpenConns: 10},
	}
	require.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "long-enough-secret-value"
	require.NoError(t, cfg.Validate())
}

func TestRateLimitNormalize(t *testing.T) {
	r := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: 0}
	r.normalize()

	assert.Equal(t, 1, r.Capacity)
	assert.Equal(t, 1, r.RefillTokens)
	assert.Equal(t, time.Second, r.RefillInterval)
	assert.Equal(t, 5*time.Second, r.TTL)
}

func TestOriginsSplitsAndTrims(t *testing.T) {
	a := AppConfig{CORSOrigins: " http://a.test , ,http://b.test"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, a.Origins())
}
