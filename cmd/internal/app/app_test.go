package app

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("ReadHeaderTimeout = %v", cfg.ReadHeaderTimeout)
	}
	if cfg.DBSchema != "subdash" {
		t.Fatalf("DBSchema = %q", cfg.DBSchema)
	}
	if cfg.RemoteURL != "" || cfg.DatabaseURL != "" {
		t.Fatalf("backend must be unconfigured by default")
	}
}

func TestNew_NoBackendConfigured(t *testing.T) {
	cfg := LoadConfig()
	cfg.RemoteURL = ""
	cfg.DatabaseURL = ""

	_, err := New(cfg, NewLogger("error"))
	if !errors.Is(err, ErrNoBackend) {
		t.Fatalf("err = %v, want ErrNoBackend", err)
	}
}

func TestNew_HostedBackend(t *testing.T) {
	cfg := LoadConfig()
	cfg.RemoteURL = "https://project.example.com"
	cfg.RemoteAPIKey = "anon-key"

	a, err := New(cfg, NewLogger("error"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.dbPool != nil {
		t.Fatalf("hosted mode must not open a db pool")
	}
	if a.remote == nil || a.dash == nil {
		t.Fatalf("app not fully wired")
	}
}

func TestNew_HostedBackendNeedsAPIKey(t *testing.T) {
	cfg := LoadConfig()
	cfg.RemoteURL = "https://project.example.com"
	cfg.RemoteAPIKey = ""

	if _, err := New(cfg, NewLogger("error")); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}
