package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Port)
	}
	if cfg.MaxConnections != 100 {
		t.Errorf("MaxConnections = %d, want 100", cfg.MaxConnections)
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Errorf("IdleTimeout = %v, want 30s", cfg.IdleTimeout)
	}
	if cfg.SweepInterval != 10*time.Second {
		t.Errorf("SweepInterval = %v, want 10s", cfg.SweepInterval)
	}
	if cfg.RateWindow != 10*time.Second {
		t.Errorf("RateWindow = %v, want 10s", cfg.RateWindow)
	}
	if cfg.RateMaxMessages != 1 {
		t.Errorf("RateMaxMessages = %d, want 1", cfg.RateMaxMessages)
	}
	if cfg.ReloadInterval != 72*time.Hour {
		t.Errorf("ReloadInterval = %v, want 72h", cfg.ReloadInterval)
	}
	if cfg.StatusInterval != 10*time.Minute {
		t.Errorf("StatusInterval = %v, want 10m", cfg.StatusInterval)
	}
	if cfg.ModelName != DefaultModelName {
		t.Errorf("ModelName = %q, want %q", cfg.ModelName, DefaultModelName)
	}
	if cfg.EmbedderModel != DefaultEmbedderModel {
		t.Errorf("EmbedderModel = %q, want %q", cfg.EmbedderModel, DefaultEmbedderModel)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DORMCHAT_PORT", "9100")
	t.Setenv("DORMCHAT_MAX_CONNECTIONS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Port)
	}
	if cfg.MaxConnections != 5 {
		t.Errorf("MaxConnections = %d, want 5", cfg.MaxConnections)
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		PostgresHost:     "db.internal",
		PostgresPort:     5433,
		PostgresUser:     "chat",
		PostgresPassword: "pw",
		PostgresDBName:   "chatdb",
		PostgresSSLMode:  "require",
	}

	want := "postgres://chat:pw@db.internal:5433/chatdb?sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestConfig_Addr(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 8000}
	if got := cfg.Addr(); got != "127.0.0.1:8000" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:8000")
	}
}

func TestConfig_MarshalJSONMasksSecrets(t *testing.T) {
	cfg := Config{
		GeminiAPIKey:     "real-api-key",
		PostgresPassword: "real-password",
		AdminToken:       "real-admin-token",
		PostgresUser:     "chat",
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	out := string(data)

	for _, secret := range []string{"real-api-key", "real-password", "real-admin-token"} {
		if strings.Contains(out, secret) {
			t.Errorf("marshaled config leaks %q", secret)
		}
	}
	if !strings.Contains(out, "********") {
		t.Error("marshaled config missing mask")
	}
	if !strings.Contains(out, `"postgres_user":"chat"`) {
		t.Error("marshaled config missing non-sensitive field")
	}
}

func validConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8000,
		AdminToken:      "an-admin-token-long-enough",
		MaxConnections:  100,
		IdleTimeout:     30 * time.Second,
		SweepInterval:   10 * time.Second,
		RateWindow:      10 * time.Second,
		RateMaxMessages: 1,
		ReloadInterval:  72 * time.Hour,
		GeminiAPIKey:    "key",
		PostgresHost:    "localhost",
		PostgresPort:    5432,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(_ *Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.GeminiAPIKey = "" }, wantErr: ErrMissingAPIKey},
		{name: "empty postgres host", mutate: func(c *Config) { c.PostgresHost = "" }, wantErr: ErrInvalidPostgresHost},
		{name: "postgres port out of range", mutate: func(c *Config) { c.PostgresPort = 70000 }, wantErr: ErrInvalidPostgresPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateServe(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(_ *Config) {}},
		{name: "port out of range", mutate: func(c *Config) { c.Port = 0 }, wantErr: ErrInvalidPort},
		{name: "zero max connections", mutate: func(c *Config) { c.MaxConnections = 0 }, wantErr: ErrInvalidMaxConnections},
		{name: "negative idle timeout", mutate: func(c *Config) { c.IdleTimeout = -time.Second }, wantErr: ErrInvalidIdleTimeout},
		{name: "zero sweep interval", mutate: func(c *Config) { c.SweepInterval = 0 }, wantErr: ErrInvalidSweepInterval},
		{name: "zero rate window", mutate: func(c *Config) { c.RateWindow = 0 }, wantErr: ErrInvalidRateWindow},
		{name: "zero rate messages", mutate: func(c *Config) { c.RateMaxMessages = 0 }, wantErr: ErrInvalidRateMessages},
		{name: "zero reload interval", mutate: func(c *Config) { c.ReloadInterval = 0 }, wantErr: ErrInvalidReloadInterval},
		{name: "missing admin token", mutate: func(c *Config) { c.AdminToken = "" }, wantErr: ErrMissingAdminToken},
		{name: "short admin token", mutate: func(c *Config) { c.AdminToken = "short" }, wantErr: ErrWeakAdminToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateServe()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateServe() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateServe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
