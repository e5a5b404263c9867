// Package config loads runtime configuration from the environment, the way
// every dashpack process is configured.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process configuration.
type Config struct {
	Registry RegistryConfig
}

// RegistryConfig configures the remote package registry.
type RegistryConfig struct {
	// URL is the registry API base URL (DASH_REGISTRY_URL). Required for a
	// real publish; dry runs work without it.
	URL string
	// Timeout bounds the whole publish network exchange
	// (DASH_REGISTRY_TIMEOUT, seconds; default 60).
	Timeout time.Duration
}

// Load reads configuration from the environment. Registry settings are
// validated when present; a missing DASH_REGISTRY_URL only fails later, at
// real-publish time.
func Load() (Config, error) {
	cfg := Config{}

	cfg.Registry.URL = strings.TrimRight(getEnv("DASH_REGISTRY_URL", ""), "/")
	if cfg.Registry.URL != "" {
		parsed, err := url.Parse(cfg.Registry.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return Config{}, fmt.Errorf("invalid DASH_REGISTRY_URL: %q", cfg.Registry.URL)
		}
	}

	timeoutSec := getEnvInt("DASH_REGISTRY_TIMEOUT", 60)
	if timeoutSec <= 0 {
		return Config{}, fmt.Errorf("invalid DASH_REGISTRY_TIMEOUT: %d", timeoutSec)
	}
	cfg.Registry.Timeout = time.Duration(timeoutSec) * time.Second

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
