package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/emotionlab/go-enrollment"
	"github.com/emotionlab/go-enrollment/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ enrollment.Config = (*config.Config)(nil)

func TestLoadDefaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "admin", cfg.GetAdminUsername())
	assert.Equal(t, 24, cfg.GetTokenExpiration())
	assert.Equal(t, 10*time.Minute, cfg.GetOTPTTL())
	assert.Equal(t, 8, cfg.GetMinPasswordLength())
	assert.Equal(t, "IN", cfg.GetPhoneRegion())
	assert.Equal(t, "sqlite", cfg.DatabaseDialect)
	assert.False(t, cfg.GetSecureCookies())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enrollment.yaml")
	raw := []byte(`
server:
  addr: ":8080"
database:
  dialect: postgres
  dsn: postgres://localhost/enrollment
auth:
  otp_ttl: 5m
  secure_cookies: true
  phone_region: US
kafka:
  brokers: ["k1:9092", "k2:9092"]
`)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "postgres", cfg.DatabaseDialect)
	assert.Equal(t, 5*time.Minute, cfg.GetOTPTTL())
	assert.True(t, cfg.GetSecureCookies())
	assert.Equal(t, "US", cfg.GetPhoneRegion())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "from-env", cfg.GetSigningKey())
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.Equal(t, "admin", cfg.GetAdminUsername())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  otp_ttl: soon\n"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
