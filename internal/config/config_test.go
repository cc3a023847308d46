package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")

		configContent := `
server:
  port: 9000
  host: 127.0.0.1
database:
  type: sqlite
  sqlite:
    path: /tmp/test.db
jwt:
  secret: test-secret
  expiration: 48h
  issuer: test-access
validation:
  timeout: 3s
  idempotency_ttl: 10m
logging:
  level: debug
  format: console
  output: stdout
`
		err := os.WriteFile(configPath, []byte(configContent), 0644)
		require.NoError(t, err)

		cfg, err := Load(configPath, nil)
		require.NoError(t, err)
		assert.NotNil(t, cfg)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, "sqlite", cfg.Database.Type)
		assert.Equal(t, "test-secret", cfg.JWT.Secret)
		assert.Equal(t, 3*time.Second, cfg.Validation.Timeout)
		assert.Equal(t, 10*time.Minute, cfg.Validation.IdempotencyTTL)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("Load with non-existent file uses defaults", func(t *testing.T) {
		cfg, err := Load("/non/existent/path.yaml", nil)
		require.NoError(t, err)
		assert.NotNil(t, cfg)
		// Should have default values
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	})

	t.Run("Load with invalid YAML fails", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")

		configContent := `invalid: yaml: content:`
		err := os.WriteFile(configPath, []byte(configContent), 0644)
		require.NoError(t, err)

		_, err = Load(configPath, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("Load with invalid config values fails validation", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.yaml")

		configContent := `
server:
  port: 70000
database:
  type: sqlite
  sqlite:
    path: /tmp/test.db
`
		err := os.WriteFile(configPath, []byte(configContent), 0644)
		require.NoError(t, err)

		_, err = Load(configPath, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestDefault(t *testing.T) {
	t.Run("Default config has sensible values", func(t *testing.T) {
		cfg := Default()
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
		assert.False(t, cfg.Server.TLSEnabled)

		assert.Equal(t, "sqlite", cfg.Database.Type)
		assert.Equal(t, "conecta-access.db", cfg.Database.SQLite.Path)

		assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
		assert.Equal(t, "conecta-access", cfg.JWT.Issuer)

		assert.Equal(t, 2*time.Second, cfg.Validation.Timeout)
		assert.Equal(t, 5*time.Minute, cfg.Validation.IdempotencyTTL)

		assert.Equal(t, 30*time.Second, cfg.Health.CheckInterval)
		assert.Equal(t, 2*time.Minute, cfg.Health.OfflineThreshold)
		assert.Equal(t, time.Minute, cfg.Health.SweepInterval)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Format)
	})

	t.Run("Default config passes validation", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Run("Override server port", func(t *testing.T) {
		os.Setenv("CONECTA_SERVER_PORT", "9090")
		defer os.Unsetenv("CONECTA_SERVER_PORT")

		cfg := Default()
		cfg.applyEnvOverrides()
		assert.Equal(t, 9090, cfg.Server.Port)
	})

	t.Run("Override server host", func(t *testing.T) {
		os.Setenv("CONECTA_SERVER_HOST", "localhost")
		defer os.Unsetenv("CONECTA_SERVER_HOST")

		cfg := Default()
		cfg.applyEnvOverrides()
		assert.Equal(t, "localhost", cfg.Server.Host)
	})

	t.Run("Override database type and path", func(t *testing.T) {
		os.Setenv("CONECTA_DB_TYPE", "postgres")
		os.Setenv("CONECTA_DB_POSTGRES_HOST", "db.internal")
		defer os.Unsetenv("CONECTA_DB_TYPE")
		defer os.Unsetenv("CONECTA_DB_POSTGRES_HOST")

		cfg := Default()
		cfg.applyEnvOverrides()
		assert.Equal(t, "postgres", cfg.Database.Type)
		assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	})

	t.Run("Override JWT secret", func(t *testing.T) {
		os.Setenv("CONECTA_JWT_SECRET", "env-secret")
		defer os.Unsetenv("CONECTA_JWT_SECRET")

		cfg := Default()
		cfg.applyEnvOverrides()
		assert.Equal(t, "env-secret", cfg.JWT.Secret)
	})

	t.Run("Override validation timeout", func(t *testing.T) {
		os.Setenv("CONECTA_VALIDATION_TIMEOUT", "750ms")
		defer os.Unsetenv("CONECTA_VALIDATION_TIMEOUT")

		cfg := Default()
		cfg.applyEnvOverrides()
		assert.Equal(t, 750*time.Millisecond, cfg.Validation.Timeout)
	})

	t.Run("Invalid env values are ignored", func(t *testing.T) {
		os.Setenv("CONECTA_SERVER_PORT", "not-a-number")
		defer os.Unsetenv("CONECTA_SERVER_PORT")

		cfg := Default()
		cfg.applyEnvOverrides()
		assert.Equal(t, 8080, cfg.Server.Port)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		return cfg
	}

	t.Run("Invalid port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("TLS without cert", func(t *testing.T) {
		cfg := valid()
		cfg.Server.TLSEnabled = true
		assert.Error(t, cfg.Validate())
	})

	t.Run("Unknown database type", func(t *testing.T) {
		cfg := valid()
		cfg.Database.Type = "oracle"
		assert.Error(t, cfg.Validate())
	})

	t.Run("SQLite without path", func(t *testing.T) {
		cfg := valid()
		cfg.Database.SQLite.Path = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("Postgres without host", func(t *testing.T) {
		cfg := valid()
		cfg.Database.Type = "postgres"
		cfg.Database.Postgres.Host = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("Non-positive validation timeout", func(t *testing.T) {
		cfg := valid()
		cfg.Validation.Timeout = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Non-positive idempotency TTL", func(t *testing.T) {
		cfg := valid()
		cfg.Validation.IdempotencyTTL = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Non-positive health intervals", func(t *testing.T) {
		cfg := valid()
		cfg.Health.CheckInterval = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Unknown log level", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Level = "verbose"
		assert.Error(t, cfg.Validate())
	})
}

func TestGetDSN(t *testing.T) {
	t.Run("SQLite DSN is the path", func(t *testing.T) {
		cfg := Default()
		cfg.Database.SQLite.Path = "/data/access.db"
		assert.Equal(t, "/data/access.db", cfg.GetDSN())
	})

	t.Run("Postgres DSN carries connection parameters", func(t *testing.T) {
		cfg := Default()
		cfg.Database.Type = "postgres"
		cfg.Database.Postgres.Host = "db.internal"
		cfg.Database.Postgres.Database = "access"
		cfg.Database.Postgres.User = "access"
		cfg.Database.Postgres.Password = "secret"

		dsn := cfg.GetDSN()
		assert.Contains(t, dsn, "host=db.internal")
		assert.Contains(t, dsn, "dbname=access")
		assert.Contains(t, dsn, "sslmode=disable")
	})
}
