package config

import (
	"fmt"

	"github.com/nucleus/pm-sync/internal/validation"
)

// Validate checks struct rules and the cross-field constraints.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if c.Sync.Enabled && c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive when sync is enabled")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	seen := make(map[string]bool, len(c.Services))
	for _, s := range c.Services {
		if seen[s.ID] {
			return fmt.Errorf("services: duplicate id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Addr is the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
