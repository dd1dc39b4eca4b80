// config.go
package main

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// PresencePolicy decides what addUser does when the user is already online.
type PresencePolicy string

const (
	// PolicyKeepFirst leaves the existing binding alone.
	PolicyKeepFirst PresencePolicy = "keep-first"
	// PolicyReplace rebinds the user to the connection that announced last.
	PolicyReplace PresencePolicy = "replace"
)

// UnmarshalText lets env parse PRESENCE_POLICY straight into the type.
func (p *PresencePolicy) UnmarshalText(text []byte) error {
	*p = PresencePolicy(text)
	return nil
}

var (
	errInvalidPolicy = errors.New("invalid presence policy")
	errInvalidLimit  = errors.New("invalid limit")
)

// Config is read from the environment once at startup.
type Config struct {
	Port            int            `env:"PORT" envDefault:"12345"`
	LogLevel        string         `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment  bool           `env:"LOG_DEVELOPMENT" envDefault:"false"`
	PresencePolicy  PresencePolicy `env:"PRESENCE_POLICY" envDefault:"keep-first"`
	HistoryLimit    int            `env:"HISTORY_LIMIT" envDefault:"0"`
	SendBuffer      int            `env:"SEND_BUFFER" envDefault:"256"`
	MaxMessageBytes int64          `env:"MAX_MESSAGE_BYTES" envDefault:"1048576"`
	AllowedOrigins  []string       `env:"ALLOWED_ORIGINS" envSeparator:","`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.PresencePolicy {
	case PolicyKeepFirst, PolicyReplace:
	default:
		return fmt.Errorf("%w: %q", errInvalidPolicy, c.PresencePolicy)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: PORT=%d", errInvalidLimit, c.Port)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("%w: HISTORY_LIMIT=%d", errInvalidLimit, c.HistoryLimit)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("%w: SEND_BUFFER=%d", errInvalidLimit, c.SendBuffer)
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("%w: MAX_MESSAGE_BYTES=%d", errInvalidLimit, c.MaxMessageBytes)
	}
	return nil
}

func (c Config) addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
