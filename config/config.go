// Package config loads service settings from an optional YAML file with
// environment overrides applied on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingDatabaseURL = errors.New("config: database.url is required")
	ErrMissingJWTSecret   = errors.New("config: auth.jwtSecret is required")
)

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"maxConns"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwtSecret"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Service  string         `yaml:"service"`
	Version  string         `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

func Default() Config {
	return Config{
		Service: "autilance-api",
		Version: "dev",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 20 * time.Second,
		},
		Database: DatabaseConfig{MaxConns: 10},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path when it is non-empty, then applies environment overrides
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: open: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (cfg *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("DATABASE_URL", &cfg.Database.URL)
	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	str("HTTP_ADDR", &cfg.Server.Addr)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("SERVICE_VERSION", &cfg.Version)

	if v, ok := lookup("DB_MAX_CONNS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("config: DB_MAX_CONNS: %w", err)
		}
		cfg.Database.MaxConns = int32(n)
	}
	if err := dur("REQUEST_TIMEOUT", &cfg.Server.RequestTimeout); err != nil {
		return err
	}
	return dur("SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
}

func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return ErrMissingDatabaseURL
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	if cfg.Database.MaxConns < 0 {
		return fmt.Errorf("config: database.maxConns must not be negative")
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("config: server.requestTimeout must be positive")
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: unsupported log.format %q", cfg.Log.Format)
	}
	return nil
}
