// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (DORMCHAT_* runtime override)
//  2. Config file (./dormchat.yaml or /etc/dormchat/dormchat.yaml)
//  3. Default values
//
// Security: sensitive fields (database password, API key, admin token) are
// masked in MarshalJSON. Validation lives in validation.go and reports
// sentinel errors usable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidPort indicates the listen port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidMaxConnections indicates the connection ceiling is not positive.
	ErrInvalidMaxConnections = errors.New("invalid max connections")

	// ErrInvalidIdleTimeout indicates the idle timeout is not positive.
	ErrInvalidIdleTimeout = errors.New("invalid idle timeout")

	// ErrInvalidRateWindow indicates the rate-limit window is not positive.
	ErrInvalidRateWindow = errors.New("invalid rate window")

	// ErrInvalidRateMessages indicates the per-window message budget is not positive.
	ErrInvalidRateMessages = errors.New("invalid rate max messages")

	// ErrInvalidSweepInterval indicates the idle sweep interval is not positive.
	ErrInvalidSweepInterval = errors.New("invalid sweep interval")

	// ErrInvalidReloadInterval indicates the scheduled reload interval is not positive.
	ErrInvalidReloadInterval = errors.New("invalid reload interval")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrMissingAdminToken indicates serve mode requires an admin token.
	ErrMissingAdminToken = errors.New("missing admin token")

	// ErrWeakAdminToken indicates the admin token is too short.
	ErrWeakAdminToken = errors.New("admin token too short")
)

// Default model identifiers. gemini-embedding-001 outputs 3072 dimensions
// by default but supports truncation to 768 via OutputDimensionality; the
// pgvector schema uses 768 (see rag.VectorDimension).
const (
	DefaultModelName     = "gemini-2.5-flash-lite"
	DefaultEmbedderModel = "gemini-embedding-001"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// HTTP server
	Host        string   `mapstructure:"host" json:"host"`
	Port        int      `mapstructure:"port" json:"port"`
	AdminToken  string   `mapstructure:"admin_token" json:"admin_token"` // SENSITIVE: masked in MarshalJSON
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For behind a reverse proxy
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`   // per-IP HTTP token bucket burst (0 = default 60)

	// Connection governance
	MaxConnections  int           `mapstructure:"max_connections" json:"max_connections"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" json:"idle_timeout"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`
	RateWindow      time.Duration `mapstructure:"rate_window" json:"rate_window"`
	RateMaxMessages int           `mapstructure:"rate_max_messages" json:"rate_max_messages"`

	// Background maintenance
	ReloadInterval time.Duration `mapstructure:"reload_interval" json:"reload_interval"`
	StatusInterval time.Duration `mapstructure:"status_interval" json:"status_interval"`

	// AI provider
	GeminiAPIKey  string  `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Storage
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Ingestion
	DataDir    string   `mapstructure:"data_dir" json:"data_dir"`
	SourceURLs []string `mapstructure:"source_urls" json:"source_urls"`
	LockFile   string   `mapstructure:"lock_file" json:"lock_file"`
}

// Load reads configuration from file, environment, and defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("dormchat")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/dormchat")

	v.SetEnvPrefix("DORMCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults + env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets the production governance constants: 100 connections,
// 30s idle timeout, 1 message per 10s window, 10s sweep, reload every
// 72h, status report every 10 minutes.
func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 0)

	v.SetDefault("max_connections", 100)
	v.SetDefault("idle_timeout", 30*time.Second)
	v.SetDefault("sweep_interval", 10*time.Second)
	v.SetDefault("rate_window", 10*time.Second)
	v.SetDefault("rate_max_messages", 1)

	v.SetDefault("reload_interval", 72*time.Hour)
	v.SetDefault("status_interval", 10*time.Minute)

	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("max_tokens", 3069)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "dormchat")
	v.SetDefault("postgres_db_name", "dormchat")
	v.SetDefault("postgres_ssl_mode", "prefer")

	v.SetDefault("data_dir", "data_documents")
	v.SetDefault("source_urls", []string{})
	v.SetDefault("lock_file", "dormchat-ingest.lock")
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode,
	)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MarshalJSON masks sensitive fields so the config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	if a.PostgresPassword != "" {
		a.PostgresPassword = "********"
	}
	if a.GeminiAPIKey != "" {
		a.GeminiAPIKey = "********"
	}
	if a.AdminToken != "" {
		a.AdminToken = "********"
	}
	return json.Marshal(a)
}
