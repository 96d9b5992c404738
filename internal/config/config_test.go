package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected default addr %q", cfg.Addr)
	}
	if cfg.CacheTTL != time.Minute {
		t.Fatalf("unexpected default cache ttl %v", cfg.CacheTTL)
	}
	if cfg.StrictResolution {
		t.Fatalf("strict resolution must default off")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRUSS_ADDR", ":9999")
	t.Setenv("TRUSS_CACHE_TTL", "5m")
	t.Setenv("TRUSS_STRICT_RESOLUTION", "true")
	t.Setenv("TRUSS_RATE_BURST", "3")

	cfg := Load()
	if cfg.Addr != ":9999" {
		t.Fatalf("addr override lost: %q", cfg.Addr)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("ttl override lost: %v", cfg.CacheTTL)
	}
	if !cfg.StrictResolution {
		t.Fatalf("strict override lost")
	}
	if cfg.RateBurst != 3 {
		t.Fatalf("rate burst override lost: %d", cfg.RateBurst)
	}
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("TRUSS_RATE_PER_SEC", "many")
	t.Setenv("TRUSS_CACHE_TTL", "-3m")

	cfg := Load()
	if cfg.RatePerSec != 10 {
		t.Fatalf("garbage int must fall back, got %d", cfg.RatePerSec)
	}
	if cfg.CacheTTL != time.Minute {
		t.Fatalf("non-positive ttl must fall back, got %v", cfg.CacheTTL)
	}
}
