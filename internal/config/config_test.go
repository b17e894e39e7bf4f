package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "8181"
database:
  url: postgres://localhost:5432/crm
jwt:
  secret_key: test-secret
log:
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost:5432/crm", cfg.Database.URL)
	// Defaults survive partial files.
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenDuration)
	assert.Equal(t, 10, cfg.Auth.LoginRatePerMinute)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  url: postgres://file-value:5432/crm
jwt:
  secret_key: test-secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CRM_DATABASE_URL", "postgres://env-value:5432/crm")
	t.Setenv("CRM_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-value:5432/crm", cfg.Database.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("CRM_JWT_SECRET_KEY", "s")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestValidate_BadLogFormat(t *testing.T) {
	cfg := defaults()
	cfg.Database.URL = "postgres://x"
	cfg.JWT.SecretKey = "s"
	cfg.Log.Format = "pretty"

	assert.Error(t, cfg.Validate())
}
