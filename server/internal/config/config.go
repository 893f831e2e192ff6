package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/waterworm/waterworm/pkg/types"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "pace_pct < 90", "last_increment < 0",
	// "days_left < 3", "state == behind".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultHTTPPort    = 8080
	DefaultSnapshotTTL = time.Hour
	DefaultResync      = 5 * time.Minute
	DefaultStaleAfter  = time.Hour
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the API, charts, status page and WebSocket hub
	// listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// EnvFile is an optional dotenv file loaded before secrets are resolved.
	EnvFile string `yaml:"env_file"`

	// Auth configures how the server authenticates API clients.
	Auth AuthConfig `yaml:"auth"`

	// Snapshot controls in-memory snapshot retention.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Receiver controls how progress logs are watched.
	Receiver ReceiverConfig `yaml:"receiver"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`

	// Sources lists the progress logs the server analyzes.
	Sources []Source `yaml:"sources"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// SnapshotConfig controls in-memory snapshot retention.
type SnapshotConfig struct {
	// TTL is how long a source's snapshot remains in the store after its last
	// successful analysis. Default: 1h.
	TTL time.Duration `yaml:"ttl"`
}

// ReceiverConfig controls the log watcher.
type ReceiverConfig struct {
	// Resync re-analyzes every log on this interval even without file
	// events, keeping snapshots of quiet sources alive. Default: 5m.
	Resync time.Duration `yaml:"resync"`

	// StaleAfter is the age of the newest sample after which a source is
	// reported as stale. Default: 1h.
	StaleAfter time.Duration `yaml:"stale_after"`
}

// Source is one tracked fundraising page and its progress log.
type Source struct {
	ID      string     `yaml:"id"`
	Name    string     `yaml:"name"`
	LogPath string     `yaml:"log_path"`
	PageURL string     `yaml:"page_url"`
	Goal    GoalConfig `yaml:"goal"`
}

// GoalConfig is the campaign target. Dates accept YAML timestamps such as
// 2025-08-01 or 2025-08-01T00:00:00Z.
type GoalConfig struct {
	Amount float64   `yaml:"amount"`
	Start  time.Time `yaml:"start"`
	End    time.Time `yaml:"end"`
}

// Goal converts the configured goal to its analysis form in UTC.
func (g GoalConfig) Goal() types.Goal {
	return types.Goal{Amount: g.Amount, Start: g.Start.UTC(), End: g.End.UTC()}
}

// Find returns the source with the given id.
func (s ServerConfig) Find(id string) (Source, bool) {
	for _, src := range s.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return Source{}, false
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	applySourceDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	if cfg.Server.EnvFile != "" {
		if err := godotenv.Load(cfg.Server.EnvFile); err != nil {
			return nil, fmt.Errorf("server config: load env file %q: %w", cfg.Server.EnvFile, err)
		}
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Snapshot: SnapshotConfig{
				TTL: DefaultSnapshotTTL,
			},
			Receiver: ReceiverConfig{
				Resync:     DefaultResync,
				StaleAfter: DefaultStaleAfter,
			},
		},
	}
}

func applySourceDefaults(cfg *Config) {
	for i := range cfg.Server.Sources {
		src := &cfg.Server.Sources[i]
		if src.Name == "" {
			src.Name = src.ID
		}
		if src.LogPath == "" && src.ID != "" {
			src.LogPath = src.ID + "_progress.csv"
		}
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Auth.Mode == "apikey" && s.Auth.KeyEnv == "" {
		return fmt.Errorf("server.auth.key_env is required when mode is apikey")
	}
	if s.Snapshot.TTL < 0 {
		return fmt.Errorf("server.snapshot.ttl must not be negative")
	}
	if s.Receiver.Resync < 0 {
		return fmt.Errorf("server.receiver.resync must not be negative")
	}
	if s.Receiver.StaleAfter < 0 {
		return fmt.Errorf("server.receiver.stale_after must not be negative")
	}

	if len(s.Sources) == 0 {
		return fmt.Errorf("server.sources must list at least one source")
	}
	seen := make(map[string]bool, len(s.Sources))
	for i, src := range s.Sources {
		if src.ID == "" {
			return fmt.Errorf("server.sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("server.sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true
		if src.Goal.Amount < 0 {
			return fmt.Errorf("server.sources[%d] (%s): goal.amount must not be negative", i, src.ID)
		}
		if src.Goal.Amount > 0 && !src.Goal.End.After(src.Goal.Start) {
			return fmt.Errorf("server.sources[%d] (%s): goal.end must be after goal.start", i, src.ID)
		}
	}

	for i, r := range s.Alerts.Rules {
		if r.Name == "" || r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name and condition are required", i)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: type %q unknown: want slack|teams|http", i, w.Type)
		}
	}
	return nil
}
