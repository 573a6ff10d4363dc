package config

import (
	"fmt"
)

// minAdminTokenLength guards against trivially guessable admin tokens.
const minAdminTokenLength = 16

// Validate checks fields required by every entry point (serve and ingest).
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set DORMCHAT_GEMINI_API_KEY", ErrMissingAPIKey)
	}
	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	return nil
}

// ValidateServe checks fields only the HTTP server needs, on top of Validate.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxConnections, c.MaxConnections)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidIdleTimeout, c.IdleTimeout)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSweepInterval, c.SweepInterval)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRateWindow, c.RateWindow)
	}
	if c.RateMaxMessages < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidRateMessages, c.RateMaxMessages)
	}
	if c.ReloadInterval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidReloadInterval, c.ReloadInterval)
	}
	if c.AdminToken == "" {
		return fmt.Errorf("%w: set DORMCHAT_ADMIN_TOKEN", ErrMissingAdminToken)
	}
	if len(c.AdminToken) < minAdminTokenLength {
		return fmt.Errorf("%w: need at least %d characters", ErrWeakAdminToken, minAdminTokenLength)
	}
	return nil
}
