package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_RequiresDBUrl(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := LoadConfig()
	assert.EqualError(t, err, "DB_URL is required")
}

func TestLoadConfig_RequiresJWTSecret(t *testing.T) {
	t.Setenv("DB_URL", "user:pass@tcp(localhost:3306)/digibank")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	assert.EqualError(t, err, "JWT_SECRET is required")
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_URL", "user:pass@tcp(localhost:3306)/digibank")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "")
	t.Setenv("DEFAULT_CURRENCY", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("RATE_LIMIT", "")
	t.Setenv("RATE_BURST", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, float64(10), cfg.RateLimit)
	assert.Equal(t, 20, cfg.RateBurst)
}
