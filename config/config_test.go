package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "JWT_SECRET", "QR_SECRET", "JWT_EXPIRATION", "TIMEZONE", "SEED", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, cfg.JWTSecret, cfg.QRSecret)
	assert.Equal(t, "Asia/Jakarta", cfg.Timezone)
	assert.False(t, cfg.Seed)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/attendance")
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("QR_SECRET", "qr")
	t.Setenv("JWT_EXPIRATION", "90m")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("SEED", "true")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "qr", cfg.QRSecret)
	assert.Equal(t, 90*time.Minute, cfg.JWTExpiration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.Seed)
	require.NoError(t, cfg.Validate())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_EXPIRATION", "tomorrow")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("JWT_EXPIRATION", "")
	t.Setenv("SEED", "maybe")
	_, err = config.Load()
	assert.Error(t, err)

	cfg := &config.Config{DBDriver: "postgres", JWTExpiration: time.Hour}
	assert.Error(t, cfg.Validate(), "postgres needs DATABASE_URL")

	cfg = &config.Config{DBDriver: "mysql", JWTExpiration: time.Hour}
	assert.Error(t, cfg.Validate())
}
