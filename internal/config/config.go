// Package config loads server settings from the environment.
//
// A `.env` file in the working directory is loaded first (development), then
// the process environment is parsed into Config.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const devJWTSecret = "dev_secret_change_me"

// Config holds all server settings.
type Config struct {
	Port      string `env:"PORT"       envDefault:"5175"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json | console
	DBPath    string `env:"DB_PATH"    envDefault:"./data/potguess.db"`
	Env       string `env:"NODE_ENV"   envDefault:"development"`

	// Fee is the entry fee per guess in ledger base units.
	Fee uint64 `env:"GUESS_FEE" envDefault:"100"`

	JWTSecret      string `env:"JWT_SECRET"       envDefault:"dev_secret_change_me"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName     string `env:"COOKIE_NAME"      envDefault:"potguess_token"`
	ClientOrigin   string `env:"CLIENT_ORIGIN"    envDefault:"http://localhost:5173"`

	// SignupBonus is minted to every new player account.
	SignupBonus uint64 `env:"SIGNUP_BONUS" envDefault:"0"`
}

// Load reads .env (if present) and parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse parses the process environment without touching .env.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Production reports whether NODE_ENV is production.
func (c Config) Production() bool { return c.Env == "production" }

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Fee == 0 {
		errs = append(errs, errors.New("GUESS_FEE must be positive"))
	}
	if c.JWTExpiresDays <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_DAYS must be positive"))
	}
	if c.Production() && (c.JWTSecret == "" || c.JWTSecret == devJWTSecret) {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}
