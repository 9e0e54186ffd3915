package llm

import (
	"time"

	"github.com/deskops-io/deskops/pkg/config"
)

// RetryPolicy is the stateless retry configuration executed by Invoker.
// Backoff is exponential in the completed attempt count; capacity
// failures use a separate, larger base with a hard cap.
type RetryPolicy struct {
	// MaxAttempts bounds total invocation attempts, including the first.
	MaxAttempts int

	// BaseDelay is the unit for transient backoff: 2^attempt * BaseDelay.
	BaseDelay time.Duration

	// CapacityBaseDelay and CapacityMaxDelay shape the capacity path:
	// min(2^attempt * CapacityBaseDelay, CapacityMaxDelay).
	CapacityBaseDelay time.Duration
	CapacityMaxDelay  time.Duration
}

// PolicyFromConfig builds a RetryPolicy from model configuration.
func PolicyFromConfig(cfg *config.ModelConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       cfg.MaxRetries,
		BaseDelay:         time.Duration(cfg.RetryDelay) * time.Second,
		CapacityBaseDelay: time.Duration(cfg.CapacityRetryDelay) * time.Second,
		CapacityMaxDelay:  time.Duration(cfg.CapacityRetryCap) * time.Second,
	}
}

// TransientBackoff returns the wait after the attempt-th failed attempt
// (1-based) on the transient path.
func (p RetryPolicy) TransientBackoff(attempt int) time.Duration {
	return p.BaseDelay << attempt
}

// CapacityBackoff returns the wait after the attempt-th failed attempt
// (1-based) on the capacity path, capped at CapacityMaxDelay.
func (p RetryPolicy) CapacityBackoff(attempt int) time.Duration {
	d := p.CapacityBaseDelay << attempt
	if d > p.CapacityMaxDelay {
		return p.CapacityMaxDelay
	}
	return d
}
