package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	ShopConfig
	StoreConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetCallbackAddr() string
}

type mainConfig struct {
	EnvVars
	Shop
	Store
	Session
}

// New loads the configuration from the environment.
func New() (Config, error) {
	var c mainConfig
	if err := ParseEnv(&c); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
