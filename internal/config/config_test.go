package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9999")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10, cfg.Messages.PageSize)
	assert.Equal(t, "chat.events", cfg.AMQP.Exchange)
	assert.Equal(t, 15*time.Minute, cfg.MinIO.PresignTTL)
	assert.Empty(t, cfg.AMQP.URL)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: "7000"
auth:
  jwt_secret: from-file
messages:
  page_size: 25
minio:
  endpoint: minio:9000
  bucket: uploads
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 25, cfg.Messages.PageSize)
	assert.Equal(t, "minio:9000", cfg.MinIO.Endpoint)
	assert.Equal(t, "uploads", cfg.MinIO.Bucket)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("auth:\n  jwt_secret: file\n"), 0o600))
	t.Setenv("JWT_SECRET", "env")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "env", cfg.Auth.JWTSecret)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestValidateRejectsPageSize(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{JWTSecret: "x"}, DB: DBConfig{DSN: "dsn"}}
	assert.Error(t, cfg.Validate())

	cfg.Messages.PageSize = 10
	assert.NoError(t, cfg.Validate())
}
