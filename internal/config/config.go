package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Notion    NotionConfig    `mapstructure:"notion"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	DLQ       DLQConfig       `mapstructure:"dlq"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type WebhookConfig struct {
	Path         string `mapstructure:"path"`
	Secret       string `mapstructure:"secret"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`

	// TrustProxyHeaders keys rate limiting on X-Forwarded-For/X-Real-IP.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

type NotionConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIToken   string        `mapstructure:"api_token"`
	DatabaseID string        `mapstructure:"database_id"`
	Version    string        `mapstructure:"version"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ReconcileConfig struct {
	// LockBackend selects how concurrent events for one issue are serialized:
	// "memory" for a single instance, "redis" when several instances share a
	// database.
	LockBackend string        `mapstructure:"lock_backend"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	LockWait    time.Duration `mapstructure:"lock_wait"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type DLQConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	NatsURL string `mapstructure:"nats_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("webhook.path", "/webhook")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.max_body_bytes", 1048576)
	v.SetDefault("webhook.trust_proxy_headers", false)
	v.SetDefault("notion.base_url", "https://api.notion.com")
	v.SetDefault("notion.api_token", "")
	v.SetDefault("notion.database_id", "")
	v.SetDefault("notion.version", "2022-06-28")
	v.SetDefault("notion.timeout", "30s")
	v.SetDefault("reconcile.lock_backend", "memory")
	v.SetDefault("reconcile.lock_ttl", "30s")
	v.SetDefault("reconcile.lock_wait", "10s")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests", 600)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("dlq.enabled", false)
	v.SetDefault("dlq.nats_url", "nats://localhost:4222")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/issuemirror")
	}

	// ISSUEMIRROR_NOTION_API_TOKEN style overrides for every key.
	v.SetEnvPrefix("ISSUEMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The bare Notion variables are what existing deployments export.
	_ = v.BindEnv("notion.api_token", "ISSUEMIRROR_NOTION_API_TOKEN", "NOTION_API_TOKEN")
	_ = v.BindEnv("notion.database_id", "ISSUEMIRROR_NOTION_DATABASE_ID", "NOTION_DATABASE_ID")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot start with. Missing Notion
// credentials are not an error here; see Warnings.
func (c *Config) Validate() error {
	switch c.Reconcile.LockBackend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("reconcile.lock_backend=redis requires redis.enabled")
		}
		if c.Reconcile.LockTTL <= 0 || c.Reconcile.LockWait <= 0 {
			return fmt.Errorf("reconcile.lock_ttl and reconcile.lock_wait must be positive")
		}
	default:
		return fmt.Errorf("unknown reconcile.lock_backend %q (supported: memory, redis)", c.Reconcile.LockBackend)
	}

	if c.RateLimit.Enabled {
		if !c.Redis.Enabled {
			return fmt.Errorf("ratelimit.enabled requires redis.enabled")
		}
		if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("ratelimit.requests and ratelimit.window must be positive")
		}
	}

	if !strings.HasPrefix(c.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path must start with '/': %q", c.Webhook.Path)
	}

	return nil
}

// Warnings lists settings that let the service start but will make every
// Notion call fail.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Notion.APIToken == "" {
		warnings = append(warnings, "notion.api_token is empty; Notion will reject every request")
	}
	if c.Notion.DatabaseID == "" {
		warnings = append(warnings, "notion.database_id is empty; pages cannot be queried or created")
	}
	return warnings
}
