package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("COURSEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func validConfig(t *testing.T) *AppConfig {
	t.Helper()
	v := newViper()
	v.Set("postgres.dsn", "postgres://localhost/coursehub")
	v.Set("security.accesssecret", strings.Repeat("a", 32))
	v.Set("security.refreshsecret", strings.Repeat("r", 32))
	v.Set("security.activationsecret", strings.Repeat("v", 32))
	v.Set("security.resetsecret", strings.Repeat("p", 32))
	cfg, err := decode(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg, err := decode(newViper())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 15*time.Minute, cfg.Security.AccessTTL)
	assert.Equal(t, 72*time.Hour, cfg.Security.RefreshTTL)
	assert.Equal(t, 5*time.Minute, cfg.Security.ActivationTTL)
	assert.Equal(t, 30*time.Minute, cfg.Security.ResetTTL)
	assert.Equal(t, 6, cfg.Security.CodeLength)
	assert.Equal(t, []string{"/admin"}, cfg.Edge.AdminPrefixes)
	assert.Equal(t, "mail:outbound", cfg.Mail.Stream)
	assert.True(t, cfg.Cookies.Secure)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("COURSEHUB_SECURITY_ACCESSTTL", "2m")
	t.Setenv("COURSEHUB_EDGE_ADMINPREFIXES", "/admin,/studio")
	t.Setenv("COURSEHUB_HTTP_PORT", "9090")

	cfg, err := decode(newViper())
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Security.AccessTTL)
	assert.Equal(t, []string{"/admin", "/studio"}, cfg.Edge.AdminPrefixes)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig(t).Validate())

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"short secret", func(c *AppConfig) { c.Security.ResetSecret = "short" }, "security.resetsecret"},
		{"shared session secret", func(c *AppConfig) { c.Security.RefreshSecret = c.Security.AccessSecret }, "must differ"},
		{"zero ttl", func(c *AppConfig) { c.Security.ActivationTTL = 0 }, "security.activationttl"},
		{"refresh shorter than access", func(c *AppConfig) { c.Security.RefreshTTL = time.Minute }, "must exceed"},
		{"code length", func(c *AppConfig) { c.Security.CodeLength = 2 }, "codelength"},
		{"attempts", func(c *AppConfig) { c.Security.MaxCodeAttempts = 0 }, "maxcodeattempts"},
		{"dsn", func(c *AppConfig) { c.Postgres.DSN = "" }, "postgres.dsn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateWorker(t *testing.T) {
	cfg := validConfig(t)
	cfg.Mail.SMTP.Host = "smtp.example.com"
	require.NoError(t, cfg.ValidateWorker())

	cfg.Redis.Addr = ""
	cfg.Mail.SMTP.Host = ""
	err := cfg.ValidateWorker()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr")
	assert.Contains(t, err.Error(), "mail.smtp.host")
}
