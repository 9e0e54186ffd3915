package config

import "fmt"

// RateLimitConfig defines the admission-control ceilings for model calls.
//
// Both ceilings apply over a trailing 60 second window: requests bounds the
// number of calls, units bounds consumed resource units (tokens).
type RateLimitConfig struct {
	// RequestsPerMinute is the call-count ceiling.
	RequestsPerMinute int64 `yaml:"requests_per_minute,omitempty" json:"requests_per_minute,omitempty"`

	// UnitsPerMinute is the consumed-unit ceiling.
	UnitsPerMinute int64 `yaml:"units_per_minute,omitempty" json:"units_per_minute,omitempty"`

	// MaxWaitSeconds caps how long a single Acquire waits for headroom.
	// Past the cap the call proceeds and the breach is logged.
	MaxWaitSeconds float64 `yaml:"max_wait_seconds,omitempty" json:"max_wait_seconds,omitempty"`

	// Tiered enables the two-tier variant: the ceilings above become the
	// global tier and each caller identity gets its own limiter with the
	// per-caller ceilings.
	Tiered *TieredRateLimitConfig `yaml:"tiered,omitempty" json:"tiered,omitempty"`
}

// TieredRateLimitConfig defines per-caller ceilings for the tiered variant.
type TieredRateLimitConfig struct {
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	PerCallerRequestsPerMinute int64 `yaml:"per_caller_requests_per_minute,omitempty" json:"per_caller_requests_per_minute,omitempty"`
	PerCallerUnitsPerMinute    int64 `yaml:"per_caller_units_per_minute,omitempty" json:"per_caller_units_per_minute,omitempty"`
}

// IsEnabled returns true if the tiered variant is enabled.
func (c *TieredRateLimitConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// SetDefaults sets default values for RateLimitConfig.
func (c *RateLimitConfig) SetDefaults() {
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = 50
	}
	if c.UnitsPerMinute == 0 {
		c.UnitsPerMinute = 100000
	}
	if c.MaxWaitSeconds == 0 {
		c.MaxWaitSeconds = 60
	}
	if c.Tiered.IsEnabled() {
		if c.Tiered.PerCallerRequestsPerMinute == 0 {
			c.Tiered.PerCallerRequestsPerMinute = c.RequestsPerMinute
		}
		if c.Tiered.PerCallerUnitsPerMinute == 0 {
			c.Tiered.PerCallerUnitsPerMinute = c.UnitsPerMinute
		}
	}
}

// Validate validates the RateLimitConfig.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be positive, got %d", c.RequestsPerMinute)
	}
	if c.UnitsPerMinute < 1 {
		return fmt.Errorf("units_per_minute must be positive, got %d", c.UnitsPerMinute)
	}
	if c.MaxWaitSeconds <= 0 {
		return fmt.Errorf("max_wait_seconds must be positive, got %v", c.MaxWaitSeconds)
	}
	if c.Tiered.IsEnabled() {
		if c.Tiered.PerCallerRequestsPerMinute > c.RequestsPerMinute {
			return fmt.Errorf("per_caller_requests_per_minute (%d) exceeds the global ceiling (%d)",
				c.Tiered.PerCallerRequestsPerMinute, c.RequestsPerMinute)
		}
		if c.Tiered.PerCallerUnitsPerMinute > c.UnitsPerMinute {
			return fmt.Errorf("per_caller_units_per_minute (%d) exceeds the global ceiling (%d)",
				c.Tiered.PerCallerUnitsPerMinute, c.UnitsPerMinute)
		}
	}
	return nil
}
