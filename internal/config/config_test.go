package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terra-platform/internal/pipeline"
	"terra-platform/pkg/database"
)

// isolate points .env discovery at an empty temp dir for the test
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TERRA_ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "terra", cfg.Database.User)
	assert.Equal(t, "data/terra.db", cfg.Database.SqlitePath)
	assert.Equal(t, SourceFile, cfg.Data.Source)
	assert.Equal(t, "info", cfg.Logging.Level)

	w, err := cfg.DefaultWindow()
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultWindow(), w)
}

func TestLoadConfig_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("TERRA_SERVER_PORT", "9090")
	t.Setenv("TERRA_SERVER_RATE_LIMIT_RPS", "2.5")
	t.Setenv("TERRA_DATABASE_DRIVER", "postgres")
	t.Setenv("TERRA_DATABASE_SSL_MODE", "require")
	t.Setenv("TERRA_DATABASE_NAME", "atmos")
	t.Setenv("TERRA_DATA_SOURCE", "database")
	t.Setenv("TERRA_LOGGING_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2.5, cfg.Server.RateLimitRPS)
	assert.Equal(t, SourceDatabase, cfg.Data.Source)
	assert.Equal(t, "debug", cfg.Logging.Level)

	dbCfg := cfg.DatabaseConfig()
	assert.Equal(t, database.DriverPostgres, dbCfg.Driver)
	assert.Equal(t, "require", dbCfg.SSLMode)
	assert.Equal(t, "atmos", dbCfg.Database)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	envFile := filepath.Join(dir, "custom.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TERRA_DATA_FILE=/srv/terra/terra_data.csv\n"), 0o600))
	t.Setenv("TERRA_ENV_FILE", envFile)
	t.Cleanup(func() { os.Unsetenv("TERRA_DATA_FILE") })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/srv/terra/terra_data.csv", cfg.Data.File)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"unknown source", func(c *Config) { c.Data.Source = "s3" }},
		{"bad default date", func(c *Config) { c.Data.DefaultStartDate = "2010/01/01" }},
		{"missing sqlite path", func(c *Config) { c.Database.SqlitePath = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			cfg, err := LoadConfig()
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
