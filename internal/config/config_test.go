package config

import (
	"testing"
	"time"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("VOCASTAR_STORE", "Redis")
	t.Setenv("VOCASTAR_DSN", "localhost:6379")
	t.Setenv("VOCASTAR_ADDR", "")
	t.Setenv("VOCASTAR_CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("VOCASTAR_PRELOAD_DELAY_SECONDS", "2")
	t.Setenv("GEMINI_TIMEOUT_SECONDS", "nope")

	cfg := Load()
	if cfg.StoreEngine != "redis" {
		t.Fatalf("expected engine redis, got %q", cfg.StoreEngine)
	}
	if cfg.StoreDSN != "localhost:6379" {
		t.Fatalf("unexpected dsn %q", cfg.StoreDSN)
	}
	if cfg.HTTPAddr != "" {
		t.Fatalf("expected empty address to disable http, got %q", cfg.HTTPAddr)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.PreloadDelay != 2*time.Second {
		t.Fatalf("unexpected preload delay %s", cfg.PreloadDelay)
	}
	if cfg.GeminiTimeout != 20*time.Second {
		t.Fatalf("expected default timeout on invalid value, got %s", cfg.GeminiTimeout)
	}
	if cfg.AdminID != "admin7" || cfg.RecordPrefix != "vocastar_" {
		t.Fatalf("unexpected constants %q %q", cfg.AdminID, cfg.RecordPrefix)
	}
}
