package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Hosted backend. When set, auth calls go out over HTTPS.
	RemoteURL    string
	RemoteAPIKey string

	// Self-hosted backend, used when RemoteURL is empty.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string

	// If true, /readyz returns 503 unless the configured backend is reachable.
	ReadinessRequireBackend bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("SUBDASH_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("SUBDASH_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("SUBDASH_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SUBDASH_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SUBDASH_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SUBDASH_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("SUBDASH_HTTP_MAX_HEADER_BYTES", 1<<20),

		RemoteURL:    EnvString("SUBDASH_REMOTE_URL", ""),
		RemoteAPIKey: EnvString("SUBDASH_REMOTE_API_KEY", ""),

		DatabaseURL: EnvString("SUBDASH_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("SUBDASH_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SUBDASH_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("SUBDASH_DB_SCHEMA", "subdash"),

		ReadinessRequireBackend: EnvBool("SUBDASH_READINESS_REQUIRE_BACKEND", false),
	}
}
