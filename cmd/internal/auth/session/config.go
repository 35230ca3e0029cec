package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines runtime configuration for the session core.
type Config struct {
	// IdleTimeout is how long a session may sit untouched before the next
	// access forces a logout.
	IdleTimeout time.Duration

	// ActivityLogCap bounds the in-memory activity log; the oldest entry is
	// evicted first once the cap is reached.
	ActivityLogCap int

	// ResetRedirectURL is the app target embedded in password-recovery emails.
	ResetRedirectURL string
}

// DefaultConfig returns the defaults used when no environment overrides exist.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:      time.Hour,
		ActivityLogCap:   100,
		ResetRedirectURL: "http://localhost:8080/auth/reset/confirm",
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - SUBDASH_SESSION_IDLE_TIMEOUT (Go duration string)
//   - SUBDASH_ACTIVITY_LOG_CAP
//   - SUBDASH_RESET_REDIRECT_URL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("SUBDASH_SESSION_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.IdleTimeout = d
	}

	if v := os.Getenv("SUBDASH_ACTIVITY_LOG_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10000 {
			return Config{}, ErrConfig
		}
		cfg.ActivityLogCap = n
	}

	if v := strings.TrimSpace(os.Getenv("SUBDASH_RESET_REDIRECT_URL")); v != "" {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			return Config{}, ErrConfig
		}
		cfg.ResetRedirectURL = v
	}

	return cfg, nil
}
