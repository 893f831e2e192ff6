package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultScrapeInterval     = 10 * time.Minute
	DefaultBufferSize         = 1000
	DefaultMetricsAddr        = ":9310"
	DefaultSelector           = "#ab_hero_total_amount_raised_number"
	DefaultUserAgent          = "waterworm/1.0 (+https://github.com/waterworm/waterworm)"
	DefaultBreakerMaxFailures = 3
	DefaultBreakerTimeout     = 5 * time.Minute
	DefaultPostgresTable      = "progress_samples"
	DefaultMongoDatabase      = "waterworm"
	DefaultMongoCollection    = "samples"
	DefaultRedisPrefix        = "waterworm"
)

// Source types.
const (
	TypeHTML       = "html"
	TypePrometheus = "prometheus"
)

// Config is the agent's view of config.yaml. The `server:` key in the same
// file is ignored.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ScrapeInterval controls how often each source is polled.
	ScrapeInterval time.Duration `yaml:"scrape_interval"`

	// BufferSize is the maximum number of readings each sink holds in memory
	// while it is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// MetricsAddr is the listen address of the /metrics endpoint. Empty
	// disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// EnvFile is an optional dotenv file loaded before secrets are resolved.
	EnvFile string `yaml:"env_file"`

	// Sources is the list of fundraising pages to track.
	Sources []Source `yaml:"sources"`

	// Sinks are optional downstream stores that receive every reading.
	Sinks SinksConfig `yaml:"sinks"`
}

// Source describes one tracked fundraising total.
type Source struct {
	// ID is a unique, human-readable identifier for this source.
	ID string `yaml:"id"`

	// Type is html | prometheus.
	Type string `yaml:"type"`

	// Endpoint is the page URL (html) or exposition URL (prometheus).
	Endpoint string `yaml:"endpoint"`

	// Selector is the CSS selector of the element holding the total (html).
	Selector string `yaml:"selector"`

	// Metric is the metric family whose samples are summed (prometheus).
	Metric string `yaml:"metric"`

	// LogPath is the CSV progress log. Defaults to "<id>_progress.csv".
	LogPath string `yaml:"log_path"`

	UserAgent string `yaml:"user_agent"`

	Auth    AuthConfig    `yaml:"auth"`
	TLS     TLSConfig     `yaml:"tls"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// AuthConfig specifies the authentication mode for a source.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// API key fields, used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv holds the bearer token variable name (Mode == "bearer").
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields, used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string { return env(a.KeyEnv) }

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string { return env(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string { return env(a.PasswordEnv) }

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// BreakerConfig tunes the per-source circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32 `yaml:"max_failures"`

	// Timeout is how long the breaker stays open before a trial request.
	Timeout time.Duration `yaml:"timeout"`
}

// SinksConfig groups the optional downstream stores.
type SinksConfig struct {
	Postgres PostgresSink `yaml:"postgres"`
	Mongo    MongoSink    `yaml:"mongo"`
	Redis    RedisSink    `yaml:"redis"`
}

// PostgresSink writes readings into a table.
type PostgresSink struct {
	Enabled bool   `yaml:"enabled"`
	DSNEnv  string `yaml:"dsn_env"`
	Table   string `yaml:"table"`
}

// DSN returns the connection string resolved from the environment.
func (p PostgresSink) DSN() string { return env(p.DSNEnv) }

// MongoSink inserts one document per reading.
type MongoSink struct {
	Enabled    bool   `yaml:"enabled"`
	URIEnv     string `yaml:"uri_env"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// URI returns the connection URI resolved from the environment.
func (m MongoSink) URI() string { return env(m.URIEnv) }

// RedisSink keeps the latest reading per source and publishes each one.
type RedisSink struct {
	Enabled     bool   `yaml:"enabled"`
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	Prefix      string `yaml:"prefix"`
}

// Password returns the Redis password resolved from the environment.
func (r RedisSink) Password() string { return env(r.PasswordEnv) }

func env(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults. When env_file is set it
// is loaded into the process environment; variables already set win.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applySourceDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.Agent.EnvFile != "" {
		if err := godotenv.Load(cfg.Agent.EnvFile); err != nil {
			return nil, fmt.Errorf("config: load env_file: %w", err)
		}
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ScrapeInterval: DefaultScrapeInterval,
			BufferSize:     DefaultBufferSize,
			MetricsAddr:    DefaultMetricsAddr,
			Sinks: SinksConfig{
				Postgres: PostgresSink{Table: DefaultPostgresTable},
				Mongo:    MongoSink{Database: DefaultMongoDatabase, Collection: DefaultMongoCollection},
				Redis:    RedisSink{Prefix: DefaultRedisPrefix},
			},
		},
	}
}

// applySourceDefaults fills per-source fields that yaml leaves zero.
func applySourceDefaults(cfg *Config) {
	for i := range cfg.Agent.Sources {
		src := &cfg.Agent.Sources[i]
		if src.Type == TypeHTML && src.Selector == "" {
			src.Selector = DefaultSelector
		}
		if src.LogPath == "" && src.ID != "" {
			src.LogPath = src.ID + "_progress.csv"
		}
		if src.UserAgent == "" {
			src.UserAgent = DefaultUserAgent
		}
		if src.Breaker.MaxFailures == 0 {
			src.Breaker.MaxFailures = DefaultBreakerMaxFailures
		}
		if src.Breaker.Timeout == 0 {
			src.Breaker.Timeout = DefaultBreakerTimeout
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Agent.ScrapeInterval <= 0 {
		return fmt.Errorf("agent.scrape_interval must be positive")
	}
	if cfg.Agent.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if len(cfg.Agent.Sources) == 0 {
		return fmt.Errorf("agent.sources: at least one source is required")
	}
	seen := make(map[string]bool, len(cfg.Agent.Sources))
	for i, src := range cfg.Agent.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true
		if src.Endpoint == "" {
			return fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID)
		}
		switch src.Type {
		case TypeHTML:
		case TypePrometheus:
			if src.Metric == "" {
				return fmt.Errorf("sources[%d] %q: metric is required for type prometheus", i, src.ID)
			}
		default:
			return fmt.Errorf("sources[%d] %q: unknown type %q", i, src.ID, src.Type)
		}
		switch src.Auth.Mode {
		case "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
		if src.Breaker.Timeout < 0 {
			return fmt.Errorf("sources[%d] %q: breaker.timeout must not be negative", i, src.ID)
		}
	}

	sinks := cfg.Agent.Sinks
	if sinks.Postgres.Enabled && sinks.Postgres.DSNEnv == "" {
		return fmt.Errorf("sinks.postgres: dsn_env is required")
	}
	if sinks.Mongo.Enabled && sinks.Mongo.URIEnv == "" {
		return fmt.Errorf("sinks.mongo: uri_env is required")
	}
	if sinks.Redis.Enabled && sinks.Redis.Addr == "" {
		return fmt.Errorf("sinks.redis: addr is required")
	}
	return nil
}
