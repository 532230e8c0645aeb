package resilience

import (
	"time"
)

// FromRetryConfig converts config values to a RetryConfig, keeping defaults
// for anything unset.
func FromRetryConfig(maxAttempts int, baseDelay time.Duration) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if baseDelay >= 0 {
		cfg.BaseDelay = baseDelay
	}
	return cfg
}
