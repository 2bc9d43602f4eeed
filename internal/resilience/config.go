package resilience

import (
	"time"
)

// connectJitter keeps replicas that start together from reconnecting in
// lockstep.
const connectJitter = 0.1

// ConnectRetry returns the policy for opening the partner and pricing store.
// Zero values keep the defaults; the backoff still doubles up to MaxBackoff.
func ConnectRetry(attempts int, backoff time.Duration) RetryConfig {
	cfg := DefaultRetryConfig()
	if attempts > 0 {
		cfg.MaxAttempts = attempts
	}
	if backoff > 0 {
		cfg.InitialBackoff = backoff
	}
	cfg.JitterFraction = connectJitter
	return cfg
}

// ProviderBreaker returns the breaker settings shared by the LLM providers.
// A non-positive threshold or window keeps 3 failures and 60s.
func ProviderBreaker(threshold int, window time.Duration, onChange func(name string, from, to CircuitState)) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if threshold > 0 {
		cfg.FailureThreshold = threshold
	}
	if window > 0 {
		cfg.ResetTimeout = window
	}
	cfg.OnStateChange = onChange
	return cfg
}
