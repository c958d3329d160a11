package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("VOXLINK_UPSTREAM_REALTIME_URL", "wss://upstream.example/v1/realtime")
	t.Setenv("VOXLINK_UPSTREAM_API_KEY", "sk-test")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port=%q", cfg.Port)
	}
	if cfg.UpstreamAPIBase != "https://api.openai.com/v1" {
		t.Fatalf("api base=%q", cfg.UpstreamAPIBase)
	}
	if cfg.TokenTTL != 5*time.Minute {
		t.Fatalf("ttl=%v", cfg.TokenTTL)
	}
	if cfg.TokenSecret != "" {
		t.Fatalf("secret=%q", cfg.TokenSecret)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("VOXLINK_PORT", "9000")
	t.Setenv("VOXLINK_UPSTREAM_API_BASE", "https://proxy.internal/v1")
	t.Setenv("VOXLINK_TOKEN_SECRET", "hush")
	t.Setenv("VOXLINK_TOKEN_TTL_SECONDS", "120")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9000" {
		t.Fatalf("port=%q", cfg.Port)
	}
	if cfg.UpstreamAPIBase != "https://proxy.internal/v1" {
		t.Fatalf("api base=%q", cfg.UpstreamAPIBase)
	}
	if cfg.TokenSecret != "hush" {
		t.Fatalf("secret=%q", cfg.TokenSecret)
	}
	if cfg.TokenTTL != 2*time.Minute {
		t.Fatalf("ttl=%v", cfg.TokenTTL)
	}
}

func TestFromEnv_MissingRealtimeURL(t *testing.T) {
	t.Setenv("VOXLINK_UPSTREAM_REALTIME_URL", "")
	t.Setenv("VOXLINK_UPSTREAM_API_KEY", "sk-test")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error")
	}
}

func TestFromEnv_MissingAPIKey(t *testing.T) {
	t.Setenv("VOXLINK_UPSTREAM_REALTIME_URL", "wss://upstream.example/v1/realtime")
	t.Setenv("VOXLINK_UPSTREAM_API_KEY", "")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error")
	}
}

func TestFromEnv_InvalidTTL(t *testing.T) {
	setRequired(t)
	for _, raw := range []string{"abc", "0", "-5"} {
		t.Setenv("VOXLINK_TOKEN_TTL_SECONDS", raw)
		if _, err := FromEnv(); err == nil {
			t.Fatalf("ttl %q accepted", raw)
		}
	}
}
