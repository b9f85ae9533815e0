package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Providers  []ProviderConfig `json:"providers"`
	Analysis   AnalysisConfig   `json:"analysis"`
	Recommend  RecommendConfig  `json:"recommend"`
	Dictionary DictionaryConfig `json:"dictionary"`
	Catalog    CatalogConfig    `json:"catalog"`
	Database   DatabaseConfig   `json:"database"`
	Gateway    GatewayConfig    `json:"gateway"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
	// CORSOrigins lists allowed browser origins; empty allows any.
	CORSOrigins []string `json:"cors_origins,omitempty"`
}

type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Model    string            `json:"model"`
	Extra    map[string]string `json:"extra,omitempty"`
	Timeout  Duration          `json:"timeout,omitempty"`
	// Auth switches the provider from a static API key to OAuth2 client
	// credentials.
	Auth *AuthConfig `json:"auth,omitempty"`
}

type AuthConfig struct {
	TokenURL     string `json:"token_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Scope        string `json:"scope"`
}

type AnalysisConfig struct {
	Enabled         bool     `json:"enabled"`
	Provider        string   `json:"provider"`
	Fallbacks       []string `json:"fallbacks,omitempty"`
	Model           string   `json:"model"`
	Timeout         Duration `json:"timeout"`
	MaxAttempts     int      `json:"max_attempts"`
	Backoff         Duration `json:"backoff"`
	MaxBackoff      Duration `json:"max_backoff"`
	BreakerFailures uint32   `json:"breaker_failures"`
	BreakerCooldown Duration `json:"breaker_cooldown"`
}

type RecommendConfig struct {
	Limit        int      `json:"limit"`
	CacheTTL     Duration `json:"cache_ttl"`
	MinScore     float64  `json:"min_score"`
	MinRelevance int      `json:"min_relevance"`
}

type DictionaryConfig struct {
	// Path to a YAML dictionary; empty uses the embedded one.
	Path string `json:"path"`
	// Graph overlays synonym groups curated in Neo4j.
	Graph bool `json:"graph"`
}

type CatalogConfig struct {
	// SeedPath is a JSON product list used when PostgreSQL is not configured.
	SeedPath      string `json:"seed_path"`
	MigrationsDir string `json:"migrations_dir"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisConfig struct {
	URL    string `json:"url"`
	Prefix string `json:"prefix"`
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

// Duration reads either a Go duration string ("1500ms", "1h") or a number
// of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(t * float64(time.Second))
	case string:
		if t == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", t, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Defaults fills zero values with production defaults.
func (c *Config) Defaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3210
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "debug"
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = Duration(10 * time.Second)
	}
	if c.Analysis.MaxAttempts == 0 {
		c.Analysis.MaxAttempts = 3
	}
	if c.Analysis.Backoff == 0 {
		c.Analysis.Backoff = Duration(500 * time.Millisecond)
	}
	if c.Analysis.MaxBackoff == 0 {
		c.Analysis.MaxBackoff = Duration(5 * time.Second)
	}
	if c.Analysis.BreakerFailures == 0 {
		c.Analysis.BreakerFailures = 5
	}
	if c.Analysis.BreakerCooldown == 0 {
		c.Analysis.BreakerCooldown = Duration(30 * time.Second)
	}
	if c.Recommend.Limit == 0 {
		c.Recommend.Limit = 5
	}
	if c.Recommend.CacheTTL == 0 {
		c.Recommend.CacheTTL = Duration(time.Hour)
	}
	if c.Recommend.MinRelevance == 0 {
		c.Recommend.MinRelevance = 1
	}
	if c.Catalog.MigrationsDir == "" {
		c.Catalog.MigrationsDir = "migrations"
	}
	if c.Database.Redis.Prefix == "" {
		c.Database.Redis.Prefix = "giffly:"
	}
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable references
// and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes JSON config bytes.
func Parse(data []byte) (*Config, error) {
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, err
	}
	cfg.Defaults()
	return &cfg, nil
}
