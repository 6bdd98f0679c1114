package auth

import "time"

// Config configures the identity service.
type Config struct {
	ServiceTokenSecret string
	ServiceTokenTTL    time.Duration
	DefaultRole        Role
}

func DefaultConfig() *Config {
	return &Config{
		ServiceTokenTTL: 24 * time.Hour,
		DefaultRole:     RoleUser,
	}
}
