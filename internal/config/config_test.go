package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Transport)
	assert.Equal(t, "transaction.db", cfg.DBPath)
	assert.Equal(t, "/add-lancamento", cfg.CreatePath)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, 30*time.Second, cfg.ProbeInterval)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 10, cfg.MaxSyncAttempts)
	assert.Equal(t, "organizacao-financeira-app.onrender.com:443", cfg.NetworkProbeAddr)
	assert.False(t, cfg.BotEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://192.168.56.1:5000/")
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("REQUEST_TIMEOUT", "10s")
	t.Setenv("MAX_RETRY_ATTEMPTS", "5")
	t.Setenv("PROBE_INTERVAL", "15s")
	t.Setenv("DISCORD_BOT_TOKEN", "bot")
	t.Setenv("DISCORD_CHANNEL_ID", "123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://192.168.56.1:5000", cfg.APIBaseURL)
	assert.Equal(t, "secret", cfg.APIToken)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.MaxRetryAttempts)
	assert.Equal(t, 15*time.Second, cfg.ProbeInterval)
	assert.Equal(t, "192.168.56.1:5000", cfg.NetworkProbeAddr)
	assert.True(t, cfg.BotEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown transport", map[string]string{"TRANSPORT": "grpc"}},
		{"bad url", map[string]string{"API_BASE_URL": "not a url"}},
		{"tiny probe interval", map[string]string{"PROBE_INTERVAL": "10ms"}},
		{"no retries", map[string]string{"MAX_RETRY_ATTEMPTS": "0"}},
		{"bot without channel", map[string]string{"DISCORD_BOT_TOKEN": "bot"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_FixtureSkipsURL(t *testing.T) {
	t.Setenv("TRANSPORT", "fixture")
	t.Setenv("API_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TransportFixture, cfg.Transport)
}
