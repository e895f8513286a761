package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ca-srg/tripintel/internal/retry"
	"github.com/ca-srg/tripintel/internal/types"
	env "github.com/netflix/go-env"
)

// Type alias for Config
type Config = types.Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var config Config

	_, err := env.UnmarshalFromEnviron(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	config.GeminiAPIKey = strings.TrimSpace(config.GeminiAPIKey)
	config.GeminiAPIURL = strings.TrimSpace(config.GeminiAPIURL)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values and adjusts them to safe ranges.
// Missing Gemini credentials are not an error here: the server still starts
// and answers plan requests with a configuration error.
func validateConfig(config *Config) error {
	if config.GeminiAPIURL != "" {
		if err := validateGeminiURL(config.GeminiAPIURL); err != nil {
			return err
		}
	}

	if config.UpstreamMaxAttempts < 1 {
		config.UpstreamMaxAttempts = 1
	}
	if config.UpstreamMaxAttempts > 10 {
		config.UpstreamMaxAttempts = 10
	}
	if config.UpstreamBaseDelay <= 0 {
		config.UpstreamBaseDelay = time.Second
	}
	if config.UpstreamMaxJitter < 0 {
		config.UpstreamMaxJitter = 0
	}
	if config.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be greater than 0")
	}

	if config.ServerPort < 1 || config.ServerPort > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if config.ServerReadTimeout <= 0 {
		return fmt.Errorf("SERVER_READ_TIMEOUT must be greater than 0")
	}
	if config.ServerWriteTimeout <= 0 {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if config.ServerIdleTimeout <= 0 {
		return fmt.Errorf("SERVER_IDLE_TIMEOUT must be greater than 0")
	}
	if config.ServerShutdownTimeout <= 0 {
		return fmt.Errorf("SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}

	if budget := UpstreamBudget(config); budget >= config.ServerWriteTimeout {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%v) must exceed the worst-case upstream time (%v = %d attempts x UPSTREAM_TIMEOUT + backoff)",
			config.ServerWriteTimeout, budget, config.UpstreamMaxAttempts)
	}

	return nil
}

// UpstreamBudget is the longest a plan request can spend on the upstream
// call: every attempt hitting UPSTREAM_TIMEOUT plus the maximum backoff.
func UpstreamBudget(config *Config) time.Duration {
	policy := retry.ServerPolicy()
	policy.MaxAttempts = config.UpstreamMaxAttempts
	policy.BaseDelay = config.UpstreamBaseDelay
	policy.MaxJitter = config.UpstreamMaxJitter
	return time.Duration(config.UpstreamMaxAttempts)*config.UpstreamTimeout + policy.MaxBackoff()
}

func validateGeminiURL(raw string) error {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid GEMINI_API_URL URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("GEMINI_API_URL scheme must be http or https")
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("GEMINI_API_URL must include a valid host")
	}

	// The key is appended as ?key=...; a pre-existing query would be clobbered.
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("GEMINI_API_URL must not include a query string")
	}

	return nil
}
