// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat service.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/Tyrowin/linechat/internal/chat"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by LoadConfig, e.g.
// LINECHAT_ADDR or LINECHAT_RATE_LIMIT_BURST.
const EnvPrefix = "LINECHAT"

const (
	defaultAddr            = "127.0.0.1:8888"
	defaultHTTPAddr        = "127.0.0.1:8080"
	defaultMaxLineSize     = 4096
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultRateBurst       = 5
	defaultRefillInterval  = time.Second
)

// RateLimitConfig defines the parameters for per-connection line rate limiting.
type RateLimitConfig struct {
	Burst          int           `mapstructure:"burst"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig selects where spans are exported: "none" or "stdout".
type TracingConfig struct {
	Exporter string `mapstructure:"exporter"`
}

// Config holds the server configuration.
type Config struct {
	// Addr is the TCP bind address of the line protocol.
	Addr string `mapstructure:"addr"`
	// HTTPAddr serves health, metrics, the online list and the WebSocket
	// gateway. Empty disables the HTTP side.
	HTTPAddr        string          `mapstructure:"http_addr"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	MaxLineSize     int             `mapstructure:"max_line_size"`
	HistorySize     int             `mapstructure:"history_size"`
	SendQueueSize   int             `mapstructure:"send_queue_size"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	Log             LogConfig       `mapstructure:"log"`
	Tracing         TracingConfig   `mapstructure:"tracing"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Addr:     defaultAddr,
		HTTPAddr: defaultHTTPAddr,
		AllowedOrigins: []string{
			"http://localhost:8080",
			"http://127.0.0.1:8080",
		},
		MaxLineSize:     defaultMaxLineSize,
		HistorySize:     chat.DefaultHistorySize,
		SendQueueSize:   chat.DefaultQueueSize,
		WriteTimeout:    defaultWriteTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
		RateLimit: RateLimitConfig{
			Burst:          defaultRateBurst,
			RefillInterval: defaultRefillInterval,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Exporter: TracingNone,
		},
	}
}

// Sanitize replaces invalid values with defaults. Addr and HTTPAddr are left
// alone: an empty HTTPAddr is meaningful.
func (c Config) Sanitize() Config {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = def.MaxLineSize
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = def.SendQueueSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = def.Tracing.Exporter
	}
	c.AllowedOrigins = parseOrigins(c.AllowedOrigins)
	return c
}

// SetDefaults registers every configuration key with its default so that
// environment variables are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("addr", def.Addr)
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("allowed_origins", def.AllowedOrigins)
	v.SetDefault("max_line_size", def.MaxLineSize)
	v.SetDefault("history_size", def.HistorySize)
	v.SetDefault("send_queue_size", def.SendQueueSize)
	v.SetDefault("write_timeout", def.WriteTimeout)
	v.SetDefault("shutdown_timeout", def.ShutdownTimeout)
	v.SetDefault("rate_limit.burst", def.RateLimit.Burst)
	v.SetDefault("rate_limit.refill_interval", def.RateLimit.RefillInterval)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("tracing.exporter", def.Tracing.Exporter)
}

// NewViper returns a viper instance reading LINECHAT_* environment variables
// on top of the defaults.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// LoadConfig decodes v into a sanitized Config. If a config file was set on v
// it is read first.
func LoadConfig(v *viper.Viper) (Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Sanitize(), nil
}

// parseOrigins splits comma separated entries and drops blanks, so that both
// a YAML list and LINECHAT_ALLOWED_ORIGINS="a,b" work.
func parseOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, entry := range origins {
		for _, part := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
