package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 6, cfg.InviteCodeLength)
	assert.Equal(t, 4, cfg.ResetCodeLength)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.NotEmpty(t, cfg.JWTSecret, "development gets a fallback secret")
	assert.False(t, cfg.SMTP.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE", "MEMORY")
	t.Setenv("MAX_ATTEMPTS", "3")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.SMTP.Enabled())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carepath.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7000\"\nmax_attempts: 7\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_ATTEMPTS", "2")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 2, cfg.MaxAttempts, "env overrides the file")
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")

	_, err := load(viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidateRejectsZeroAttempts(t *testing.T) {
	t.Setenv("MAX_ATTEMPTS", "0")

	_, err := load(viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_ATTEMPTS")
}
