package config

import (
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Default server host = %v, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Default server port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Model.Provider != "anthropic" {
		t.Errorf("Default provider = %v, want anthropic", cfg.Model.Provider)
	}
	if cfg.Model.MaxRetries != 3 {
		t.Errorf("Default max_retries = %v, want 3", cfg.Model.MaxRetries)
	}
	if cfg.Model.RetryDelay != 1 {
		t.Errorf("Default retry_delay = %v, want 1", cfg.Model.RetryDelay)
	}
	if cfg.Model.CapacityRetryDelay != 10 {
		t.Errorf("Default capacity_retry_delay = %v, want 10", cfg.Model.CapacityRetryDelay)
	}
	if cfg.Model.CapacityRetryCap != 60 {
		t.Errorf("Default capacity_retry_cap = %v, want 60", cfg.Model.CapacityRetryCap)
	}
	if cfg.RateLimit.RequestsPerMinute != 50 {
		t.Errorf("Default requests_per_minute = %v, want 50", cfg.RateLimit.RequestsPerMinute)
	}
	if cfg.RateLimit.UnitsPerMinute != 100000 {
		t.Errorf("Default units_per_minute = %v, want 100000", cfg.RateLimit.UnitsPerMinute)
	}
	if cfg.Workflow.MaxIterations != 5 {
		t.Errorf("Default max_iterations = %v, want 5", cfg.Workflow.MaxIterations)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{
			name:    "defaults_are_valid",
			mutate:  func(cfg *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown_provider",
			mutate:  func(cfg *Config) { cfg.Model.Provider = "openai" },
			wantErr: true,
		},
		{
			name:    "mock_provider_is_valid",
			mutate:  func(cfg *Config) { cfg.Model.Provider = "mock" },
			wantErr: false,
		},
		{
			name:    "port_out_of_range",
			mutate:  func(cfg *Config) { cfg.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "negative_requests_per_minute",
			mutate:  func(cfg *Config) { cfg.RateLimit.RequestsPerMinute = -1 },
			wantErr: true,
		},
		{
			name:    "temperature_above_one",
			mutate:  func(cfg *Config) { cfg.Model.Temperature = 1.5 },
			wantErr: true,
		},
		{
			name: "capacity_cap_below_base_delay",
			mutate: func(cfg *Config) {
				cfg.Model.CapacityRetryDelay = 30
				cfg.Model.CapacityRetryCap = 10
			},
			wantErr: true,
		},
		{
			name:    "zero_max_iterations_rejected",
			mutate:  func(cfg *Config) { cfg.Workflow.MaxIterations = -3 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTieredRateLimitConfig(t *testing.T) {
	t.Run("disabled_when_nil", func(t *testing.T) {
		var cfg RateLimitConfig
		if cfg.Tiered.IsEnabled() {
			t.Error("nil tiered config should be disabled")
		}
	})

	t.Run("per_caller_ceilings_default_to_global", func(t *testing.T) {
		cfg := RateLimitConfig{
			RequestsPerMinute: 100,
			UnitsPerMinute:    50000,
			Tiered:            &TieredRateLimitConfig{Enabled: BoolPtr(true)},
		}
		cfg.SetDefaults()
		if cfg.Tiered.PerCallerRequestsPerMinute != 100 {
			t.Errorf("PerCallerRequestsPerMinute = %v, want 100", cfg.Tiered.PerCallerRequestsPerMinute)
		}
		if cfg.Tiered.PerCallerUnitsPerMinute != 50000 {
			t.Errorf("PerCallerUnitsPerMinute = %v, want 50000", cfg.Tiered.PerCallerUnitsPerMinute)
		}
	})

	t.Run("per_caller_ceiling_above_global_rejected", func(t *testing.T) {
		cfg := RateLimitConfig{
			Tiered: &TieredRateLimitConfig{
				Enabled:                    BoolPtr(true),
				PerCallerRequestsPerMinute: 500,
			},
		}
		cfg.SetDefaults()
		if err := cfg.Validate(); err == nil {
			t.Error("expected validation error for per-caller ceiling above global")
		}
	})
}
