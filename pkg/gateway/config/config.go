// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the gateway daemon needs to run.
type Config struct {
	// Port the HTTP/websocket listener binds to.
	Port string

	// UpstreamRealtimeURL is the provider's realtime websocket endpoint.
	UpstreamRealtimeURL string

	// UpstreamAPIBase is the provider's HTTP API base for the chat and
	// TTS proxies.
	UpstreamAPIBase string

	// UpstreamAPIKey authenticates the gateway against the provider. The
	// key never reaches clients; they hold short-lived session tokens.
	UpstreamAPIKey string

	// TokenSecret signs ephemeral session tokens. Empty disables client
	// authentication (local development).
	TokenSecret string

	// TokenTTL bounds session token validity.
	TokenTTL time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:                getenv("VOXLINK_PORT", "8080"),
		UpstreamRealtimeURL: os.Getenv("VOXLINK_UPSTREAM_REALTIME_URL"),
		UpstreamAPIBase:     getenv("VOXLINK_UPSTREAM_API_BASE", "https://api.openai.com/v1"),
		UpstreamAPIKey:      os.Getenv("VOXLINK_UPSTREAM_API_KEY"),
		TokenSecret:         os.Getenv("VOXLINK_TOKEN_SECRET"),
		TokenTTL:            5 * time.Minute,
	}

	if raw := os.Getenv("VOXLINK_TOKEN_TTL_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("config: invalid VOXLINK_TOKEN_TTL_SECONDS %q", raw)
		}
		cfg.TokenTTL = time.Duration(secs) * time.Second
	}

	if cfg.UpstreamRealtimeURL == "" {
		return Config{}, fmt.Errorf("config: VOXLINK_UPSTREAM_REALTIME_URL is required")
	}
	if cfg.UpstreamAPIKey == "" {
		return Config{}, fmt.Errorf("config: VOXLINK_UPSTREAM_API_KEY is required")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
