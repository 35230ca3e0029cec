package session

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.IdleTimeout != time.Hour {
		t.Fatalf("IdleTimeout = %v, want 1h", cfg.IdleTimeout)
	}
	if cfg.ActivityLogCap != 100 {
		t.Fatalf("ActivityLogCap = %d, want 100", cfg.ActivityLogCap)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("SUBDASH_SESSION_IDLE_TIMEOUT", "30m")
	t.Setenv("SUBDASH_ACTIVITY_LOG_CAP", "250")
	t.Setenv("SUBDASH_RESET_REDIRECT_URL", "https://dash.example.com/reset")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.IdleTimeout != 30*time.Minute || cfg.ActivityLogCap != 250 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ResetRedirectURL != "https://dash.example.com/reset" {
		t.Fatalf("redirect = %q", cfg.ResetRedirectURL)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"SUBDASH_SESSION_IDLE_TIMEOUT": "-5m",
		"SUBDASH_ACTIVITY_LOG_CAP":     "0",
		"SUBDASH_RESET_REDIRECT_URL":   "javascript:alert(1)",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
