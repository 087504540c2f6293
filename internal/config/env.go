package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds process-level settings read from the environment.
type Env struct {
	JWTSecret        string `env:"OPSLINE_JWT_SECRET"`
	Addr             string `env:"OPSLINE_ADDR" envDefault:"127.0.0.1:8080"`
	BasePath         string `env:"OPSLINE_BASE_PATH" envDefault:"/v0"`
	LogLevel         string `env:"OPSLINE_LOG_LEVEL" envDefault:"info"`
	OTelEndpoint     string `env:"OPSLINE_OTEL_ENDPOINT"`
	OTelEnabled      bool   `env:"OPSLINE_OTEL_ENABLED" envDefault:"true"`
	AllowLegacyActor bool   `env:"OPSLINE_ALLOW_LEGACY_ACTOR" envDefault:"false"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv parses Env from the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := ParseEnv(&e); err != nil {
		return Env{}, err
	}
	return e, nil
}
