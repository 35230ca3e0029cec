package api

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls dashboard API behavior and security defaults.
type Config struct {
	// CookieName is the session cookie name.
	CookieName string

	// CookieSecure marks the session cookie Secure; disable for local dev only.
	CookieSecure bool

	// RememberMeTTL is the cookie lifetime when the user asked to be
	// remembered; without it the cookie is session-scoped.
	RememberMeTTL time.Duration

	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64

	// TrustProxy enables X-Forwarded-For parsing for activity origins.
	TrustProxy bool

	// FeedInterval is how often the websocket activity feed polls for new
	// entries.
	FeedInterval time.Duration
}

// LoadConfigFromEnv loads dashboard API config from environment variables
// with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		CookieName:    envString("SUBDASH_SESSION_COOKIE", "sd_session"),
		CookieSecure:  envBool("SUBDASH_COOKIE_SECURE", true),
		RememberMeTTL: envDuration("SUBDASH_REMEMBER_ME_TTL", 30*24*time.Hour),
		MaxBodyBytes:  envInt64("SUBDASH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		TrustProxy:    envBool("SUBDASH_TRUST_PROXY", false),
		FeedInterval:  envDuration("SUBDASH_FEED_INTERVAL", 2*time.Second),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
