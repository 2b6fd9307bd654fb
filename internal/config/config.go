// Package config defines the epigram application configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RobinCoderZhao/epigram/internal/content"
	"github.com/RobinCoderZhao/epigram/internal/insight"
	"github.com/RobinCoderZhao/epigram/internal/news"
	"github.com/RobinCoderZhao/epigram/internal/ratelimit"
	"github.com/RobinCoderZhao/epigram/internal/sources"
	pkgconfig "github.com/RobinCoderZhao/epigram/pkg/config"
	"github.com/RobinCoderZhao/epigram/pkg/kv"
	"github.com/RobinCoderZhao/epigram/pkg/llm"
	"github.com/RobinCoderZhao/epigram/pkg/notify"
)

// AppName is used for the default config path.
const AppName = "epigram"

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	KV        kv.Config        `yaml:"kv"`
	LLM       llm.Config       `yaml:"llm"`
	Content   content.Config   `yaml:"content"`
	Listing   sources.Config   `yaml:"listing"`
	Populate  PopulateConfig   `yaml:"populate"`
	Insights  insight.Config   `yaml:"insights"`
	RateLimit ratelimit.Config `yaml:"ratelimit"`
	Log       LogConfig        `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"EPIGRAM_ADDR"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"EPIGRAM_CORS_ORIGINS"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PopulateConfig configures population runs and their trigger.
type PopulateConfig struct {
	SecretHeader string               `yaml:"secret_header" env:"EPIGRAM_SECRET_HEADER_NAME"`
	Secret       string               `yaml:"secret" env:"EPIGRAM_CRON_SECRET"`
	Interval     time.Duration        `yaml:"interval" env:"EPIGRAM_POPULATE_INTERVAL"`
	ExcludeHosts []string             `yaml:"exclude_hosts"`
	Alert        notify.WebhookConfig `yaml:"alert"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"EPIGRAM_LOG_LEVEL"`
	Format string `yaml:"format" env:"EPIGRAM_LOG_FORMAT"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		KV:      kv.Config{Driver: kv.Redis, URL: "redis://localhost:6379/0", SQLDriver: "sqlite"},
		LLM:     llm.DefaultConfig(),
		Content: content.Config{Provider: content.ProviderExa, Timeout: 60 * time.Second, Concurrency: 4},
		Listing: sources.Config{
			Provider:      sources.ProviderMediastack,
			PerTopicLimit: 10,
			Timeout:       15 * time.Second,
		},
		Populate: PopulateConfig{
			SecretHeader: "x-epigram-cron-secret",
			ExcludeHosts: append([]string(nil), news.DefaultExcludeHosts...),
		},
		Insights:  insight.Config{TTL: insight.DefaultTTL},
		RateLimit: ratelimit.DefaultConfig(),
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (or the default location when empty) on top of the
// defaults, then applies .env files and environment overrides.
func Load(path string) (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, err
	}
	if path == "" {
		path = pkgconfig.DefaultPath(AppName)
	}
	cfg := Default()
	if err := pkgconfig.LoadOrDefault(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.Populate.SecretHeader == "" {
		return fmt.Errorf("populate.secret_header must not be empty")
	}
	if c.RateLimit.Limit < 0 || c.RateLimit.Window < 0 {
		return fmt.Errorf("ratelimit: limit and window must not be negative")
	}
	if c.RateLimit.Window > 0 && c.RateLimit.Window < time.Millisecond {
		return fmt.Errorf("ratelimit.window must be at least 1ms, got %s", c.RateLimit.Window)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
