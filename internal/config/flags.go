package config

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"
)

// Flags holds all command line flag values
type Flags struct {
	// General
	configFile *string
	version    *bool

	// Server
	serverPort         *int
	serverHost         *string
	serverReadTimeout  *string
	serverWriteTimeout *string
	serverTLSEnabled   *bool
	serverTLSCert      *string
	serverTLSKey       *string

	// Database
	dbType             *string
	dbSQLitePath       *string
	dbPostgresHost     *string
	dbPostgresPort     *int
	dbPostgresDatabase *string
	dbPostgresUser     *string
	dbPostgresPassword *string
	dbPostgresSSLMode  *string

	// JWT
	jwtSecret     *string
	jwtExpiration *string
	jwtIssuer     *string

	// Validation
	validationTimeout        *string
	validationIdempotencyTTL *string

	// Health
	healthCheckInterval *string
	healthSweepInterval *string

	// Logging
	logLevel  *string
	logFormat *string
	logOutput *string

	// Security
	securityCORSEnabled *bool
	securityCORSOrigins *[]string
}

// ParseFlags defines and parses all command line flags
func ParseFlags() (*Flags, string, bool) {
	f := &Flags{}

	// General flags
	f.configFile = flag.StringP("config", "c", "config.yaml", "Path to configuration file")
	f.version = flag.BoolP("version", "v", false, "Print version and exit")

	// Server flags
	f.serverPort = flag.Int("server.port", 0, "HTTP server port")
	f.serverHost = flag.String("server.host", "", "HTTP server bind address")
	f.serverReadTimeout = flag.String("server.read-timeout", "", "Server read timeout (e.g., 15s)")
	f.serverWriteTimeout = flag.String("server.write-timeout", "", "Server write timeout (e.g., 15s)")
	f.serverTLSEnabled = flag.Bool("server.tls-enabled", false, "Enable HTTPS")
	f.serverTLSCert = flag.String("server.tls-cert", "", "Path to TLS certificate")
	f.serverTLSKey = flag.String("server.tls-key", "", "Path to TLS key")

	// Database flags
	f.dbType = flag.String("db.type", "", "Database type (sqlite or postgres)")
	f.dbSQLitePath = flag.String("db.sqlite.path", "", "SQLite database file path")
	f.dbPostgresHost = flag.String("db.postgres.host", "", "PostgreSQL host")
	f.dbPostgresPort = flag.Int("db.postgres.port", 0, "PostgreSQL port")
	f.dbPostgresDatabase = flag.String("db.postgres.database", "", "PostgreSQL database name")
	f.dbPostgresUser = flag.String("db.postgres.user", "", "PostgreSQL user")
	f.dbPostgresPassword = flag.String("db.postgres.password", "", "PostgreSQL password")
	f.dbPostgresSSLMode = flag.String("db.postgres.ssl-mode", "", "PostgreSQL SSL mode")

	// JWT flags
	f.jwtSecret = flag.String("jwt.secret", "", "JWT secret key")
	f.jwtExpiration = flag.String("jwt.expiration", "", "JWT expiration duration (e.g., 24h)")
	f.jwtIssuer = flag.String("jwt.issuer", "", "JWT issuer")

	// Validation flags
	f.validationTimeout = flag.String("validation.timeout", "", "Deadline for a single validation request (e.g., 2s)")
	f.validationIdempotencyTTL = flag.String("validation.idempotency-ttl", "", "Retention window for processed event ids (e.g., 5m)")

	// Health flags
	f.healthCheckInterval = flag.String("health.check-interval", "", "Controller health check interval (e.g., 30s)")
	f.healthSweepInterval = flag.String("health.sweep-interval", "", "Visitor expiry sweep interval (e.g., 1m)")

	// Logging flags
	f.logLevel = flag.StringP("log.level", "l", "", "Log level (debug, info, warn, error)")
	f.logFormat = flag.String("log.format", "", "Log format (json or console)")
	f.logOutput = flag.String("log.output", "", "Log output (stdout or file path)")

	// Security flags
	f.securityCORSEnabled = flag.Bool("security.cors-enabled", false, "Enable CORS")
	f.securityCORSOrigins = flag.StringSlice("security.cors-origins", nil, "CORS allowed origins (can be specified multiple times)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Conecta+ Access Engine - unified access-control decision service\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nConfiguration priority (highest to lowest):\n")
		fmt.Fprintf(os.Stderr, "  1. Command line flags\n")
		fmt.Fprintf(os.Stderr, "  2. Environment variables (CONECTA_*)\n")
		fmt.Fprintf(os.Stderr, "  3. Configuration file (default: config.yaml)\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  # Start with custom config file\n")
		fmt.Fprintf(os.Stderr, "  %s --config /etc/conecta/config.yaml\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Override port and database type\n")
		fmt.Fprintf(os.Stderr, "  %s --server.port 9000 --db.type postgres\n\n", os.Args[0])
	}

	flag.Parse()

	return f, *f.configFile, *f.version
}

// changed reports whether the named flag was set on the command line.
func changed(name string) bool {
	lf := flag.Lookup(name)
	return lf != nil && lf.Changed
}

// Apply overlays flag values onto cfg. Only flags explicitly set on the
// command line take effect, so file and environment values survive.
func (f *Flags) Apply(cfg *Config) {
	// Server
	if changed("server.port") {
		cfg.Server.Port = *f.serverPort
	}
	if changed("server.host") {
		cfg.Server.Host = *f.serverHost
	}
	if changed("server.read-timeout") {
		if d, err := time.ParseDuration(*f.serverReadTimeout); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if changed("server.write-timeout") {
		if d, err := time.ParseDuration(*f.serverWriteTimeout); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if changed("server.tls-enabled") {
		cfg.Server.TLSEnabled = *f.serverTLSEnabled
	}
	if changed("server.tls-cert") {
		cfg.Server.TLSCert = *f.serverTLSCert
	}
	if changed("server.tls-key") {
		cfg.Server.TLSKey = *f.serverTLSKey
	}

	// Database
	if changed("db.type") {
		cfg.Database.Type = *f.dbType
	}
	if changed("db.sqlite.path") {
		cfg.Database.SQLite.Path = *f.dbSQLitePath
	}
	if changed("db.postgres.host") {
		cfg.Database.Postgres.Host = *f.dbPostgresHost
	}
	if changed("db.postgres.port") {
		cfg.Database.Postgres.Port = *f.dbPostgresPort
	}
	if changed("db.postgres.database") {
		cfg.Database.Postgres.Database = *f.dbPostgresDatabase
	}
	if changed("db.postgres.user") {
		cfg.Database.Postgres.User = *f.dbPostgresUser
	}
	if changed("db.postgres.password") {
		cfg.Database.Postgres.Password = *f.dbPostgresPassword
	}
	if changed("db.postgres.ssl-mode") {
		cfg.Database.Postgres.SSLMode = *f.dbPostgresSSLMode
	}

	// JWT
	if changed("jwt.secret") {
		cfg.JWT.Secret = *f.jwtSecret
	}
	if changed("jwt.expiration") {
		if d, err := time.ParseDuration(*f.jwtExpiration); err == nil {
			cfg.JWT.Expiration = d
		}
	}
	if changed("jwt.issuer") {
		cfg.JWT.Issuer = *f.jwtIssuer
	}

	// Validation
	if changed("validation.timeout") {
		if d, err := time.ParseDuration(*f.validationTimeout); err == nil {
			cfg.Validation.Timeout = d
		}
	}
	if changed("validation.idempotency-ttl") {
		if d, err := time.ParseDuration(*f.validationIdempotencyTTL); err == nil {
			cfg.Validation.IdempotencyTTL = d
		}
	}

	// Health
	if changed("health.check-interval") {
		if d, err := time.ParseDuration(*f.healthCheckInterval); err == nil {
			cfg.Health.CheckInterval = d
		}
	}
	if changed("health.sweep-interval") {
		if d, err := time.ParseDuration(*f.healthSweepInterval); err == nil {
			cfg.Health.SweepInterval = d
		}
	}

	// Logging
	if changed("log.level") {
		cfg.Logging.Level = *f.logLevel
	}
	if changed("log.format") {
		cfg.Logging.Format = *f.logFormat
	}
	if changed("log.output") {
		cfg.Logging.Output = *f.logOutput
	}

	// Security
	if changed("security.cors-enabled") {
		cfg.Security.CORSEnabled = *f.securityCORSEnabled
	}
	if changed("security.cors-origins") {
		cfg.Security.CORSOrigins = *f.securityCORSOrigins
	}
}
