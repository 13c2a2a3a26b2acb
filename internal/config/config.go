// Package config loads the platform configuration from .env files and
// TERRA_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"terra-platform/internal/pipeline"
	"terra-platform/pkg/database"
)

// EnvPrefix prefixes every environment variable, e.g. TERRA_SERVER_PORT
const EnvPrefix = "TERRA"

// Data source kinds
const (
	SourceFile     = "file"
	SourceDatabase = "database"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Data     DataConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `split_words:"true" default:"0.0.0.0"`
	Port            int           `split_words:"true" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `split_words:"true" default:"15s" validate:"gt=0"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s" validate:"gt=0"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s" validate:"gt=0"`
	RateLimitRPS    float64       `split_words:"true" default:"50" validate:"gte=0"`
	RateLimitBurst  int           `split_words:"true" default:"100" validate:"gte=0"`
}

// DatabaseConfig contains SQL store configuration
type DatabaseConfig struct {
	Driver          string        `split_words:"true" default:"sqlite" validate:"oneof=postgres sqlite"`
	Host            string        `split_words:"true" default:"localhost" validate:"required_if=Driver postgres"`
	Port            int           `split_words:"true" default:"5432" validate:"min=1,max=65535"`
	User            string        `split_words:"true" default:"terra" validate:"required_if=Driver postgres"`
	Password        string        `split_words:"true"`
	Name            string        `split_words:"true" default:"terra" validate:"required_if=Driver postgres"`
	SSLMode         string        `split_words:"true" default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	SqlitePath      string        `split_words:"true" default:"data/terra.db" validate:"required_if=Driver sqlite"`
	MaxOpenConns    int           `split_words:"true" default:"25" validate:"min=1"`
	MaxIdleConns    int           `split_words:"true" default:"5" validate:"min=0"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"5m"`
	ConnMaxIdleTime time.Duration `split_words:"true" default:"1m"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `split_words:"true" default:"info" validate:"oneof=debug info warn warning error"`
}

// DataConfig selects where observations come from and the default window
type DataConfig struct {
	Source           string `split_words:"true" default:"file" validate:"oneof=file database"`
	File             string `split_words:"true" default:"data/terra_data.csv" validate:"required_if=Source file"`
	DefaultStartDate string `split_words:"true" default:"2010-01-01" validate:"datetime=2006-01-02"`
	DefaultEndDate   string `split_words:"true" default:"2024-12-31" validate:"datetime=2006-01-02"`
}

// LoadConfig reads .env (first match of the candidate paths) and then the environment
func LoadConfig() (*Config, error) {
	for _, path := range envPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
			break
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	return &cfg, nil
}

// Validate checks field constraints and the default date window
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// DefaultWindow returns the configured default date window
func (c *Config) DefaultWindow() (pipeline.Window, error) {
	return pipeline.NewWindow(c.Data.DefaultStartDate, c.Data.DefaultEndDate)
}

// DatabaseConfig converts to the pkg/database connection config
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Name,
		SSLMode:         c.Database.SSLMode,
		SQLitePath:      c.Database.SqlitePath,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

// envPaths returns the locations checked for a .env file, in order
func envPaths() []string {
	var paths []string

	if custom := os.Getenv(EnvPrefix + "_ENV_FILE"); custom != "" {
		paths = append(paths, custom)
	}

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(cwd, ".env"),
			filepath.Join(filepath.Dir(cwd), ".env"),
		)
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "terra-platform", ".env"))
	}

	return paths
}
