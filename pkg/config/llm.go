package config

import "fmt"

// ModelConfig configures the remote model endpoint and its retry behavior.
type ModelConfig struct {
	// Provider is the model provider type. Only "anthropic" is built in.
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`

	// Model is the model name sent with every request.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// APIKey authenticates against the provider. Supports ${ENV} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// Host overrides the provider base URL.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// MaxRetries bounds invocation attempts on retryable failures.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// RetryDelay is the base backoff in seconds for transient failures.
	RetryDelay int `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`

	// CapacityRetryDelay is the base backoff in seconds when the provider
	// signals capacity exhaustion. Capacity backoff is capped at
	// CapacityRetryCap seconds.
	CapacityRetryDelay int `yaml:"capacity_retry_delay,omitempty" json:"capacity_retry_delay,omitempty"`
	CapacityRetryCap   int `yaml:"capacity_retry_cap,omitempty" json:"capacity_retry_cap,omitempty"`
}

// SetDefaults sets default values for ModelConfig.
func (c *ModelConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "anthropic"
	}
	if c.Model == "" {
		c.Model = "claude-sonnet-4-20250514"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.1
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 1
	}
	if c.CapacityRetryDelay == 0 {
		c.CapacityRetryDelay = 10
	}
	if c.CapacityRetryCap == 0 {
		c.CapacityRetryCap = 60
	}
}

// Validate validates the ModelConfig.
func (c *ModelConfig) Validate() error {
	if c.Provider != "anthropic" && c.Provider != "mock" {
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %v", c.Temperature)
	}
	if c.CapacityRetryCap < c.CapacityRetryDelay {
		return fmt.Errorf("capacity_retry_cap (%d) must be >= capacity_retry_delay (%d)",
			c.CapacityRetryCap, c.CapacityRetryDelay)
	}
	return nil
}
