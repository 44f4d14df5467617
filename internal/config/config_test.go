package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://www.adres.gov.co/consulte-su-eps", cfg.Portal.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Portal.PollInterval)
	assert.Equal(t, 5, cfg.Portal.MaxFrameDepth)
	assert.Equal(t, ProviderAntiCaptcha, cfg.Captcha.Provider)
	assert.Equal(t, 30, cfg.Captcha.MaxPolls)
	assert.Equal(t, 2*time.Second, cfg.Captcha.PollInterval)
	assert.Zero(t, cfg.Captcha.PromptTimeout, "operator prompts wait until answered or cancelled")
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Storage.Retention)
	assert.Equal(t, int64(16<<20), cfg.Batch.MaxUploadSize)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CAPTCHA_PROVIDER", "SolveCaptcha")
	t.Setenv("CAPTCHA_API_KEY", "secret")
	t.Setenv("JOB_STORE", "redis")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ProviderSolveCaptcha, cfg.Captcha.Provider)
	assert.True(t, cfg.SolverEnabled())
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown provider", func(c *Config) { c.Captcha.Provider = "deathbycaptcha" }, "CAPTCHA_PROVIDER"},
		{"unknown prompt", func(c *Config) { c.Captcha.PromptMode = "email" }, "CAPTCHA_PROMPT"},
		{"unknown store", func(c *Config) { c.Storage.Backend = "postgres" }, "JOB_STORE"},
		{"gcs without bucket", func(c *Config) { c.Artifacts.Backend = BackendGCS }, "ARTIFACTS_BUCKET"},
		{"negative depth", func(c *Config) { c.Portal.MaxFrameDepth = -1 }, "PORTAL_MAX_FRAME_DEPTH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSolverDisabledWithoutKey(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Captcha.APIKey = ""
	assert.False(t, cfg.SolverEnabled())

	cfg.Captcha.APIKey = "k"
	cfg.Captcha.Provider = ProviderNone
	assert.False(t, cfg.SolverEnabled())
}
