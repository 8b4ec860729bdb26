package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	TransportHTTP    = "http"
	TransportFixture = "fixture"
)

type Config struct {
	APIBaseURL string
	APIToken   string
	Transport  string
	CreatePath string
	HealthPath string

	DBPath     string
	OwnerEmail string

	RequestTimeout     time.Duration
	MaxRetryAttempts   int
	RetryBackoff       time.Duration
	SyncRecordAttempts int
	MaxSyncAttempts    int

	ProbeInterval    time.Duration
	ProbeTimeout     time.Duration
	NetworkProbeAddr string
	PruneSchedule    string

	HTTPAddr string
	LogLevel string

	DiscordBotToken  string
	DiscordChannelId string
}

func defaults(v *viper.Viper) {
	v.SetDefault("API_BASE_URL", "https://organizacao-financeira-app.onrender.com")
	v.SetDefault("TRANSPORT", TransportHTTP)
	v.SetDefault("CREATE_PATH", "/add-lancamento")
	v.SetDefault("HEALTH_PATH", "/")
	v.SetDefault("DB_PATH", "transaction.db")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("MAX_RETRY_ATTEMPTS", 3)
	v.SetDefault("RETRY_BACKOFF", "1s")
	v.SetDefault("SYNC_RECORD_ATTEMPTS", 1)
	v.SetDefault("MAX_SYNC_ATTEMPTS", 10)
	v.SetDefault("PROBE_INTERVAL", "30s")
	v.SetDefault("PROBE_TIMEOUT", "5s")
	v.SetDefault("PRUNE_SCHEDULE", "@daily")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads the configuration from the environment. Callers load any .env
// file first.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		APIBaseURL:         strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		APIToken:           v.GetString("API_TOKEN"),
		Transport:          strings.ToLower(v.GetString("TRANSPORT")),
		CreatePath:         v.GetString("CREATE_PATH"),
		HealthPath:         v.GetString("HEALTH_PATH"),
		DBPath:             v.GetString("DB_PATH"),
		OwnerEmail:         v.GetString("OWNER_EMAIL"),
		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
		MaxRetryAttempts:   v.GetInt("MAX_RETRY_ATTEMPTS"),
		RetryBackoff:       v.GetDuration("RETRY_BACKOFF"),
		SyncRecordAttempts: v.GetInt("SYNC_RECORD_ATTEMPTS"),
		MaxSyncAttempts:    v.GetInt("MAX_SYNC_ATTEMPTS"),
		ProbeInterval:      v.GetDuration("PROBE_INTERVAL"),
		ProbeTimeout:       v.GetDuration("PROBE_TIMEOUT"),
		NetworkProbeAddr:   v.GetString("NETWORK_PROBE_ADDR"),
		PruneSchedule:      v.GetString("PRUNE_SCHEDULE"),
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		DiscordBotToken:    v.GetString("DISCORD_BOT_TOKEN"),
		DiscordChannelId:   v.GetString("DISCORD_CHANNEL_ID"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Transport {
	case TransportHTTP:
		u, err := url.Parse(c.APIBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("API_BASE_URL %q is not a valid URL", c.APIBaseURL)
		}
		if c.NetworkProbeAddr == "" {
			c.NetworkProbeAddr = hostPort(u)
		}
	case TransportFixture:
	default:
		return fmt.Errorf("TRANSPORT must be %q or %q, got %q", TransportHTTP, TransportFixture, c.Transport)
	}

	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is not set")
	}
	if c.RequestTimeout <= 0 || c.ProbeTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT and PROBE_TIMEOUT must be positive")
	}
	if c.ProbeInterval < time.Second {
		return fmt.Errorf("PROBE_INTERVAL must be at least 1s, got %s", c.ProbeInterval)
	}
	if c.MaxRetryAttempts < 1 {
		return fmt.Errorf("MAX_RETRY_ATTEMPTS must be at least 1")
	}
	if c.DiscordBotToken != "" && c.DiscordChannelId == "" {
		return fmt.Errorf("Channel ID is not set")
	}
	return nil
}

// BotEnabled reports whether the Discord front-end should start.
func (c *Config) BotEnabled() bool {
	return c.DiscordBotToken != ""
}

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}
